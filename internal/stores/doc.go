// Package stores reads browsing data out of third-party stores: Chromium
// login databases and bookmark files, Firefox NSS key databases, logins.json
// and places.sqlite, Netscape bookmark exports and delimited credential
// files.
//
// Every reader is a pure function of its input location and the secret it
// is given (key material, secondary password). It either returns the
// complete set of records or a *dataimport.ImportError; prompting for
// secrets is left to the caller. SQLite stores are read from a private
// snapshot so that a running browser holding the database is not disturbed.
//
// Decrypted passwords are never logged or formatted into errors.
package stores
