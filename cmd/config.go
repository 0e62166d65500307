package cmd

const DESCRIPTION = `
warpimport moves saved passwords and bookmarks out of other browsers
and password managers into a local encrypted vault. It reads browser
profiles directly when it can and falls back to exported files when
it cannot.
`

const (
	SourcesDescription = `The sources command lists every product warpimport
can import from, with the data types each one provides.

`
	ProfilesDescription = `The profiles command lists the browser profiles
found for a source. Use --all to scan every browser at once.

`
	ImportDescription = `The import command imports passwords and bookmarks
from a source into the vault. Browser sources read the chosen profile
(the browser's default profile unless --profile is given). Exported
files named with --file are used, in order, whenever a data type has
to be imported from a file instead.

`
	VaultDescription = `The vault command shows what the vault holds.

`
)
