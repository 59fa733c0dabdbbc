// Package assets embeds the default riddle catalog so the server can run
// without any external catalog configured.
package assets

import "embed"

//go:embed riddles.json
var FS embed.FS

// DefaultCatalog returns the raw JSON of the embedded riddle catalog.
func DefaultCatalog() ([]byte, error) {
	return FS.ReadFile("riddles.json")
}
