package assets

import (
	"embed"
)

// WebUIAssets contains the embedded shell pages. The weft:// scheme handler
// serves weft://home and weft://history from it.
//
//go:embed webui/*
var WebUIAssets embed.FS
