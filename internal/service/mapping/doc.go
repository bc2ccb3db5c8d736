// Package mapping implements the header-mapping workflow.
//
// The service layer owns the session lifecycle: file upload, header
// extraction, mapping suggestions, saved mappings and rules, paginated
// previews, exports, and reusable templates. It depends on the store
// interfaces defined in repository.go and should never import from api/.
package mapping
