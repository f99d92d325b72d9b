// Package services contains the application core: the provider bank
// resolving configured aliases into concrete providers, the asset
// directory enforcing registry publishing rules and the lifecycle
// service driving every CLI operation.
package services
