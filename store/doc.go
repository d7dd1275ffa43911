// Package store caches fetched engine binaries by key.
//
// Memory keeps binaries for the life of the process. Badger persists them
// in a directory so later processes skip the download; opened with an empty
// directory it runs in memory.
package store
