// Package ir defines the data model shared by every other package: the
// definitions and instances read from a store, the create/update/upsert
// payloads written to one, and canonical JSON for payload hashing.
//
// ir imports nothing internal.
//
// Store-scoped IDs (definition, product, collection, file) are only ever
// meaningful in the store they were read from. Types and handles are the
// portable identifiers.
package ir
