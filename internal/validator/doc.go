// Package validator implements the Message Validator component.
//
// The Message Validator:
//   - Maps raw JSON ticker objects onto model.TickerRecord through a Schema
//   - Rejects records with missing fields (ErrMissingField)
//   - Rejects records with wrongly typed fields (ErrTypeMismatch)
//   - Enforces no range checks; the feed is the source of truth
package validator
