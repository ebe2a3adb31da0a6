package events

// Topics emitted by the settlement core.
const (
	// TopicSaleFinalized fires after the backend acknowledges a sale.
	TopicSaleFinalized = "sale.finalized"
	// TopicTransferCompleted fires after a transfer submission succeeds.
	TopicTransferCompleted = "transfer.completed"
	// TopicAdjustmentApplied fires after an adjustment submission succeeds.
	TopicAdjustmentApplied = "adjustment.applied"
	// TopicDraftSaved fires when a ticket is parked for later.
	TopicDraftSaved = "draft.saved"
)
