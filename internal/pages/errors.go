package pages

import "github.com/rotisserie/eris"

var (
	// ErrInvalidArgument is returned when a url or update notification is missing.
	ErrInvalidArgument = eris.New("invalid argument")
	// ErrKeyNotFound is returned by strict cache lookups for an unknown url.
	ErrKeyNotFound = eris.New("url not present in page cache")
	// ErrPageNotFound indicates the store holds no page for the requested url.
	ErrPageNotFound = eris.New("page not found")
)

const emptyURLMessage = "url can not be empty or whitespace"
