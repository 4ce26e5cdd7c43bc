// SPDX-License-Identifier: MPL-2.0

// Package pagecmd holds command payloads handed to an external batch
// dispatcher. The types carry data only; execution happens elsewhere.
package pagecmd

import (
	"errors"
	"fmt"
)

// CopyPageBatchHandle is the batch category under which page copies are queued.
const CopyPageBatchHandle = "copy_page"

// ErrInvalidCopyPage is the sentinel wrapped by CopyPage validation failures.
var ErrInvalidCopyPage = errors.New("invalid copy page command")

// CopyPage asks the dispatcher to copy a page below another page.
type CopyPage struct {
	// PageID is the page being copied.
	PageID int64 `json:"page_id"`
	// DestinationPageID is the parent that receives the copy.
	DestinationPageID int64 `json:"destination_page_id"`
	// Multilingual copies the page into every language section as well.
	Multilingual bool `json:"multilingual"`
}

// NewCopyPage builds a CopyPage command.
func NewCopyPage(pageID, destinationPageID int64, multilingual bool) CopyPage {
	return CopyPage{
		PageID:            pageID,
		DestinationPageID: destinationPageID,
		Multilingual:      multilingual,
	}
}

// BatchHandle returns the batch category label.
func (CopyPage) BatchHandle() string { return CopyPageBatchHandle }

// Validate rejects non-positive page identifiers.
func (c CopyPage) Validate() error {
	if c.PageID <= 0 {
		return fmt.Errorf("%w: page id %d", ErrInvalidCopyPage, c.PageID)
	}
	if c.DestinationPageID <= 0 {
		return fmt.Errorf("%w: destination page id %d", ErrInvalidCopyPage, c.DestinationPageID)
	}
	return nil
}
