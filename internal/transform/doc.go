// Package transform turns raw client tables into the target schema. It
// remaps columns using a saved header mapping, derives Tag and
// Specification columns via formula rules, synthesizes the Factwise_ID
// identifier, and fills configured default values. All operations work on
// in-memory datasets and return new values rather than mutating input.
package transform
