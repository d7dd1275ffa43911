// Package fetch retrieves engine binaries from the locations the loader
// resolves: http(s) URLs, file:// URLs or plain filesystem paths.
//
// When a variant carries an expected sha256 every binary is verified before
// it is returned or cached. Verified binaries are kept in a store.Store
// keyed by digest, so a persistent store skips the download on the next
// run.
package fetch
