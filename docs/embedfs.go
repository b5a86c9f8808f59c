package docs

import "embed"

// ReferenceBundle contains the static Open WebUI reference documentation
// used to ground the assistant when no repository docs are available.
//
//go:embed reference
var ReferenceBundle embed.FS

// ReferenceRoot is the directory of ReferenceBundle holding the documents.
const ReferenceRoot = "reference"
