// Package router turns raw stream frames into validated snapshot batches.
//
// A frame is a JSON array of ticker objects, a single ticker object, or a
// combined-stream envelope {"stream": ..., "data": ...} wrapping either.
// Undecodable frames are dropped; invalid records are dropped individually
// and counted by kind. The surviving records form one batch that replaces
// the cached ranking.
package router
