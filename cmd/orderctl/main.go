// Command orderctl drives a fulfillment workflow from the terminal: start an
// order, send it signals, and inspect its status or final result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"caravel/internal/saga"
)

const usage = `usage: orderctl <command> [flags]

commands:
  start    -order <id> [-payment <id>] [-wait]
  approve  -order <id>
  cancel   -order <id> [-reason <text>]
  address  -order <id> -line1 <s> [-line2 <s>] -city <s> -zip <s> -country <s>
  status   -order <id>
  result   -order <id>
`

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	hostPort := os.Getenv("TEMPORAL_ADDRESS")
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		log.Fatalf("dial temporal: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dispatch(ctx, c, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func dispatch(ctx context.Context, c client.Client, command string, args []string) error {
	switch command {
	case "start":
		return startOrder(ctx, c, args)
	case "approve":
		orderID, err := orderFlag(command, args)
		if err != nil {
			return err
		}
		return c.SignalWorkflow(ctx, orderID, "", saga.SignalApprove, nil)
	case "cancel":
		return cancelOrder(ctx, c, args)
	case "address":
		return updateAddress(ctx, c, args)
	case "status":
		return queryStatus(ctx, c, args)
	case "result":
		return awaitResult(ctx, c, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func startOrder(ctx context.Context, c client.Client, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	orderID := fs.String("order", "", "order id (doubles as workflow id)")
	paymentID := fs.String("payment", "", "payment id (defaults to pay-<order>)")
	wait := fs.Bool("wait", false, "block until the workflow finishes and print the result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orderID == "" {
		return fmt.Errorf("-order is required")
	}
	if *paymentID == "" {
		*paymentID = "pay-" + *orderID
	}

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        *orderID,
		TaskQueue: saga.OrderTaskQueue,
	}, saga.OrderWorkflowName, *orderID, *paymentID)
	if err != nil {
		return err
	}
	log.Printf("started workflow %s run %s", run.GetID(), run.GetRunID())

	if !*wait {
		return nil
	}
	var result saga.OrderResult
	if err := run.Get(ctx, &result); err != nil {
		return err
	}
	return printJSON(result)
}

func cancelOrder(ctx context.Context, c client.Client, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	orderID := fs.String("order", "", "order id")
	reason := fs.String("reason", "requested via orderctl", "cancellation reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orderID == "" {
		return fmt.Errorf("-order is required")
	}
	return c.SignalWorkflow(ctx, *orderID, "", saga.SignalCancelOrder, saga.CancelRequest{Reason: *reason})
}

func updateAddress(ctx context.Context, c client.Client, args []string) error {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	orderID := fs.String("order", "", "order id")
	addr := saga.Address{}
	fs.StringVar(&addr.Line1, "line1", "", "address line 1")
	fs.StringVar(&addr.Line2, "line2", "", "address line 2")
	fs.StringVar(&addr.City, "city", "", "city")
	fs.StringVar(&addr.Zip, "zip", "", "postal code")
	fs.StringVar(&addr.Country, "country", "", "country")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orderID == "" {
		return fmt.Errorf("-order is required")
	}
	return c.SignalWorkflow(ctx, *orderID, "", saga.SignalUpdateAddress, addr)
}

func queryStatus(ctx context.Context, c client.Client, args []string) error {
	orderID, err := orderFlag("status", args)
	if err != nil {
		return err
	}
	val, err := c.QueryWorkflow(ctx, orderID, "", saga.QueryStatus)
	if err != nil {
		return err
	}
	var snapshot saga.StatusSnapshot
	if err := val.Get(&snapshot); err != nil {
		return err
	}
	return printJSON(snapshot)
}

func awaitResult(ctx context.Context, c client.Client, args []string) error {
	orderID, err := orderFlag("result", args)
	if err != nil {
		return err
	}
	var result saga.OrderResult
	if err := c.GetWorkflow(ctx, orderID, "").Get(ctx, &result); err != nil {
		return err
	}
	return printJSON(result)
}

func orderFlag(command string, args []string) (string, error) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	orderID := fs.String("order", "", "order id")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *orderID == "" {
		return "", fmt.Errorf("-order is required")
	}
	return *orderID, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
