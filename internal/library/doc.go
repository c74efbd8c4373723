// Package library defines the external asset-source capability the triage
// engine consumes: asset references, category predicates, authorization
// status, and the Library interface. Concrete bindings live in
// subpackages (fslibrary) and test fakes in testsupport.
package library
