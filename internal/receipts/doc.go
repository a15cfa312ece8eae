package receipts

// Package receipts is the append-only audit trail of send passes.
//
// It records:
//   - one run record per pass (totals, dry-run flag, duration)
//   - one message record per row outcome (sent, preview, skipped, failed)
