package saga

// Task queues the workers listen on. Shipping runs on its own queue so the
// detached child can be drained independently of order traffic.
const (
	OrderTaskQueue    = "fulfillment"
	ShippingTaskQueue = "shipping"
)

// Registered workflow and activity names. Routing uses these constants only;
// there is no dynamic name construction anywhere else.
const (
	OrderWorkflowName    = "OrderWorkflow"
	ShippingWorkflowName = "ShippingWorkflow"

	ReceiveOrderActivity    = "ReceiveOrder"
	ValidateOrderActivity   = "ValidateOrder"
	ChargePaymentActivity   = "ChargePayment"
	PreparePackageActivity  = "PreparePackage"
	DispatchCarrierActivity = "DispatchCarrier"
)

// Signal and query names understood by OrderWorkflow.
const (
	SignalApprove        = "Approve"
	SignalCancelOrder    = "CancelOrder"
	SignalUpdateAddress  = "UpdateAddress"
	SignalDispatchFailed = "DispatchFailed"

	QueryStatus = "status"
)

// Step labels reported by the status query. Terminal steps end the workflow.
const (
	StepInitialized             = "initialized"
	StepReceivingOrder          = "RECEIVING_ORDER"
	StepValidatingOrder         = "VALIDATING_ORDER"
	StepWaitingForApproval      = "WAITING_FOR_APPROVAL"
	StepCancelled               = "CANCELLED"
	StepAwaitingApprovalTimeout = "AWAITING_APPROVAL_TIMEOUT"
	StepValidationFailed        = "VALIDATION_FAILED"
	StepChargingPayment         = "CHARGING_PAYMENT"
	StepChargeFailed            = "CHARGE_FAILED"
	StepStartingShipping        = "STARTING_SHIPPING"
	StepShippingStartFailed     = "SHIPPING_START_FAILED"
	StepCompleted               = "COMPLETED"
	StepFailed                  = "FAILED"
)

// Order is the order payload handed between activities. It is produced by
// the receive step and consumed by validation, charging and shipping.
type Order struct {
	OrderID string      `json:"order_id"`
	Items   []OrderItem `json:"items"`
	Status  string      `json:"status,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// ChargePayload is the input to the charge activity.
type ChargePayload struct {
	Order     Order  `json:"order"`
	PaymentID string `json:"payment_id"`
}

// Charge result statuses.
const (
	ChargeStatusCharged        = "charged"
	ChargeStatusAlreadyCharged = "already_charged"
	ChargeStatusFailed         = "failed"
)

// ChargeResult is the structured outcome of a charge attempt. Business
// failures are encoded here, never raised, so the substrate's retry policy
// only sees crashes and timeouts.
type ChargeResult struct {
	Status    string  `json:"status"`
	PaymentID string  `json:"payment_id,omitempty"`
	Amount    float64 `json:"amount"`
	Error     string  `json:"error,omitempty"`
}

// Order workflow result statuses.
const (
	ResultSuccess             = "success"
	ResultCancelled           = "cancelled"
	ResultManualReviewTimeout = "manual_review_timeout"
	ResultValidationFailed    = "validation_failed"
	ResultPaymentFailed       = "payment_failed"
	ResultShippingStartFailed = "shipping_start_failed"
)

// OrderResult is the terminal result of OrderWorkflow.
type OrderResult struct {
	Status  string        `json:"status"`
	OrderID string        `json:"order_id"`
	Payment *ChargeResult `json:"payment,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// ShippingInput is the argument to ShippingWorkflow. ParentWorkflowID is the
// target for the best-effort dispatch-failure signal; the parent may already
// be closed when the signal is sent.
type ShippingInput struct {
	Order            Order  `json:"order"`
	ParentWorkflowID string `json:"parent_workflow_id"`
}

// ShippingResultDispatched is ShippingWorkflow's success result.
const ShippingResultDispatched = "dispatched"

// Shipping step result statuses.
const (
	PrepareStatusPrepared    = "prepared"
	PrepareStatusFailed      = "prepare_failed"
	DispatchStatusDispatched = "dispatched"
	DispatchStatusFailed     = "dispatch_failed"
)

// PrepareResult is the structured outcome of the package-prepare step.
type PrepareResult struct {
	Status     string `json:"status"`
	PackageRef string `json:"package_ref,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DispatchResult is the structured outcome of the carrier-dispatch step.
type DispatchResult struct {
	Status     string `json:"status"`
	TrackingID string `json:"tracking_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Address is the payload of the UpdateAddress signal.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// CancelRequest is the payload of the CancelOrder signal.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// DispatchFailure is the payload of the DispatchFailed signal.
type DispatchFailure struct {
	Reason string `json:"reason"`
}

// StatusSnapshot is the read-only answer to the status query, available at
// any time including after termination.
type StatusSnapshot struct {
	OrderID   string `json:"order_id"`
	Step      string `json:"step"`
	LastError string `json:"last_error,omitempty"`
}
