package synthesis

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/khawaidev/fapi/internal/common"
)

// ExtractStructure returns the trimmed text of the first completion marker.
// ok is false when there is no marker or it only holds whitespace. A blank marker
// is reported as no result rather than as an empty answer with an empty structure.
func ExtractStructure(text string) (string, bool) {
	match := completionPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	structure := strings.TrimSpace(match[1])
	return structure, structure != ""
}

// IsReaction reports whether the encoding describes a reaction rather than a molecule
func IsReaction(encoding string) bool {
	return strings.Contains(encoding, ">")
}

// fragmentTemplate is rendered with text/template: values are inserted exactly as
// prepared by FragmentBuilder, which decides whether they are escaped
var fragmentTemplate = template.Must(template.New("structure").Parse(`<script src="{{.LibraryURL}}"></script>
<div class="structure-container">
{{- if .Reaction}}
  <svg id="{{.ID}}" data-smiles="{{.Attribute}}"></svg>
{{- else}}
  <img id="{{.ID}}" data-smiles="{{.Attribute}}">
{{- end}}
</div>
<script>
  (function () {
    var drawer = new SmiDrawer({ width: 500, height: 300 }, {});
    drawer.draw({{.Literal}}, "#{{.ID}}", "light");
  })();
</script>
`))

type fragmentData struct {
	LibraryURL string
	ID         string
	Reaction   bool
	Attribute  string
	Literal    string
}

// FragmentBuilder renders a self-contained HTML snippet that draws an encoding client side
type FragmentBuilder struct {
	libraryURL string
	escape     bool
}

func NewFragmentBuilder(config common.StructureConfig) *FragmentBuilder {
	return &FragmentBuilder{
		libraryURL: config.LibraryURL,
		escape:     config.Escape,
	}
}

// Build renders the fragment for encoding. Unless escaping is enabled the
// encoding is embedded verbatim in both the markup and the script.
func (b *FragmentBuilder) Build(encoding string) (string, error) {
	data := fragmentData{
		LibraryURL: b.libraryURL,
		ID:         "structure-" + uuid.New().String(),
		Reaction:   IsReaction(encoding),
		Attribute:  encoding,
		Literal:    `"` + encoding + `"`,
	}

	if b.escape {
		literal, err := json.Marshal(encoding)
		if err != nil {
			return "", fmt.Errorf("failed to encode structure literal: %w", err)
		}
		data.LibraryURL = html.EscapeString(b.libraryURL)
		data.Attribute = html.EscapeString(encoding)
		data.Literal = string(literal)
	}

	var sb strings.Builder
	if err := fragmentTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render structure fragment: %w", err)
	}
	return sb.String(), nil
}
