package extensions

import (
	"fmt"
	"os"
	"regexp"

	"github.com/cortexflow/wec/internal/wec/dispatcher"
)

// FileExtension exposes read_file and write_file tools, guarding a denylist
// of sensitive paths regardless of what the entitlements checker allows.
type FileExtension struct {
	maxFileSize  int64
	blockedPaths []*regexp.Regexp
}

// NewFileExtension returns a FileExtension with the default sensitive-path
// denylist and a 10MB read cap.
func NewFileExtension() *FileExtension {
	return &FileExtension{
		maxFileSize: 10 * 1024 * 1024,
		blockedPaths: []*regexp.Regexp{
			regexp.MustCompile(`/etc/shadow`),
			regexp.MustCompile(`/etc/passwd`),
			regexp.MustCompile(`\.ssh/id_`),
			regexp.MustCompile(`\.ssh/authorized_keys`),
			regexp.MustCompile(`\.aws/credentials`),
			regexp.MustCompile(`\.env$`),
			regexp.MustCompile(`credentials\.json$`),
			regexp.MustCompile(`secrets\.ya?ml$`),
		},
	}
}

func (f *FileExtension) Describe() []dispatcher.ToolDefinition {
	return []dispatcher.ToolDefinition{
		{Name: "read_file", Description: "Reads a file's contents."},
		{Name: "write_file", Description: "Writes content to a file."},
	}
}

func (f *FileExtension) Invoke(tool string, args map[string]interface{}) (dispatcher.ToolResponse, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return errorResponse("path is required"), nil
	}

	for _, blocked := range f.blockedPaths {
		if blocked.MatchString(path) {
			return errorResponse(fmt.Sprintf("path '%s' is blocked", path)), nil
		}
	}

	switch tool {
	case "read_file":
		return f.readFile(path)
	case "write_file":
		content, _ := args["content"].(string)
		return f.writeFile(path, content)
	default:
		return errorResponse(fmt.Sprintf("unknown tool '%s'", tool)), nil
	}
}

func (f *FileExtension) readFile(path string) (dispatcher.ToolResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	if info.Size() > f.maxFileSize {
		return errorResponse(fmt.Sprintf("file '%s' exceeds max size", path)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return dispatcher.ToolResponse{
		Content: []dispatcher.ContentItem{{Type: "text", Text: string(data)}},
		Result:  map[string]interface{}{"path": path},
	}, nil
}

func (f *FileExtension) writeFile(path, content string) (dispatcher.ToolResponse, error) {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errorResponse(err.Error()), nil
	}
	return dispatcher.ToolResponse{
		Content: []dispatcher.ContentItem{{Type: "text", Text: path}},
		Result:  map[string]interface{}{"path": path},
	}, nil
}
