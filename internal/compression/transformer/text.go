package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// Text sub-formats detected from the file extension
const (
	textFormatPlain    = "txt"
	textFormatMarkdown = "md"
	textFormatJSON     = "json"
	textFormatXML      = "xml"
	textFormatCSV      = "csv"
)

var (
	commentRe        = regexp.MustCompile(`(?s)<!--.*?-->`)
	interTagSpaceRe  = regexp.MustCompile(`>\s+<`)
	horizontalWSRe   = regexp.MustCompile(`[ \t]+`)
	trailingWSRe     = regexp.MustCompile(`(?m)[ \t]+$`)
	blankLineRunRe   = regexp.MustCompile(`\n\s*\n\s*\n`)
	csvDelimSpaceRe  = regexp.MustCompile(`\s*,\s*`)
	mdHeadingRe      = regexp.MustCompile(`(?m)^(#{1,6})\s*(.+)$`)
	mdListBulletRe   = regexp.MustCompile(`(?m)^(\s*[*+-])\s+`)
)

// TextTransformer minifies, optimizes or byte-compresses text-like files
type TextTransformer struct {
	log *logger.Logger
}

// NewTextTransformer creates a new text transformer
func NewTextTransformer(log *logger.Logger) *TextTransformer {
	return &TextTransformer{log: log.WithComponent("text-transformer")}
}

func (t *TextTransformer) Name() string { return "text" }

func (t *TextTransformer) CanTransform(category domain.FileCategory) bool {
	return category == domain.CategoryText
}

func (t *TextTransformer) Compress(ctx context.Context, file domain.SourceFile, opts domain.Options, onProgress domain.ProgressFunc) (*domain.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress := progressOrNoop(onProgress)
	textOpts := opts.Text

	progress(10)
	content := string(file.Data)
	format := detectTextFormat(file.Name)
	progress(30)

	if textOpts.Method == domain.MethodGzip {
		data, err := gzipContent(file.Data)
		if err != nil {
			// gzip backend trouble degrades to optimize rather than failing
			t.log.Warn().Err(err).Str("file", file.Name).Msg("gzip failed, falling back to optimize")
		} else {
			progress(100)
			out := domain.NewSourceFile(file.Name+".gz", "application/gzip", data)
			return &out, nil
		}
	}

	progress(50)

	var result string
	if textOpts.Method == domain.MethodMinify {
		result = minifyText(content, format, textOpts)
	} else {
		result = optimizeText(content, format, textOpts)
	}

	progress(80)

	out := domain.NewSourceFile(file.Name, file.ContentType, []byte(result))
	progress(100)
	return &out, nil
}

// detectTextFormat maps a file name to its text sub-format
func detectTextFormat(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "json":
		return textFormatJSON
	case "xml":
		return textFormatXML
	case "csv":
		return textFormatCSV
	case "md", "markdown":
		return textFormatMarkdown
	default:
		return textFormatPlain
	}
}

func minifyText(content, format string, opts domain.TextOptions) string {
	switch format {
	case textFormatJSON:
		return minifyJSON(content)
	case textFormatXML:
		return minifyXML(content, opts)
	case textFormatCSV:
		return minifyCSV(content, opts)
	default:
		return minifyPlain(content, opts)
	}
}

func optimizeText(content, format string, opts domain.TextOptions) string {
	// JSON is parsed from the raw content so invalid documents come back
	// byte-for-byte unchanged; valid ones are re-indented from scratch
	if format == textFormatJSON {
		return optimizeJSON(content)
	}

	optimized := content

	if opts.RemoveExtraWhitespace {
		optimized = horizontalWSRe.ReplaceAllString(optimized, " ")
		optimized = trailingWSRe.ReplaceAllString(optimized, "")
	}
	if opts.RemoveEmptyLines {
		optimized = collapseBlankLines(optimized)
	}

	switch format {
	case textFormatXML:
		optimized = optimizeXML(optimized, opts)
	case textFormatMarkdown:
		optimized = optimizeMarkdown(optimized, opts)
	}

	return optimized
}

// minifyJSON compacts valid JSON; invalid JSON is returned unchanged
func minifyJSON(content string) string {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	compact, err := json.Marshal(parsed)
	if err != nil {
		return content
	}
	return string(compact)
}

// optimizeJSON pretty-prints valid JSON with two-space indentation; invalid
// JSON is returned unchanged
func optimizeJSON(content string) string {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return content
	}
	return string(pretty)
}

func minifyXML(content string, opts domain.TextOptions) string {
	minified := content
	if opts.RemoveComments {
		minified = commentRe.ReplaceAllString(minified, "")
	}
	minified = interTagSpaceRe.ReplaceAllString(minified, "><")
	return strings.TrimSpace(minified)
}

func optimizeXML(content string, opts domain.TextOptions) string {
	optimized := content
	if opts.RemoveComments {
		optimized = commentRe.ReplaceAllString(optimized, "")
	}
	return interTagSpaceRe.ReplaceAllString(optimized, ">\n<")
}

func minifyCSV(content string, opts domain.TextOptions) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if opts.RemoveEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(csvDelimSpaceRe.ReplaceAllString(line, ",")))
	}
	return strings.Join(out, "\n")
}

func optimizeMarkdown(content string, opts domain.TextOptions) string {
	optimized := content
	if opts.RemoveComments {
		optimized = commentRe.ReplaceAllString(optimized, "")
	}
	optimized = mdHeadingRe.ReplaceAllString(optimized, "$1 $2")
	optimized = mdListBulletRe.ReplaceAllString(optimized, "$1 ")
	return optimized
}

func minifyPlain(content string, opts domain.TextOptions) string {
	minified := content
	if opts.RemoveExtraWhitespace {
		minified = horizontalWSRe.ReplaceAllString(minified, " ")
		minified = trailingWSRe.ReplaceAllString(minified, "")
	}
	if opts.RemoveEmptyLines {
		minified = collapseBlankLines(minified)
	}
	return strings.TrimSpace(minified)
}

// collapseBlankLines reduces runs of two or more blank lines to one
func collapseBlankLines(content string) string {
	for {
		collapsed := blankLineRunRe.ReplaceAllString(content, "\n\n")
		if collapsed == content {
			return collapsed
		}
		content = collapsed
	}
}

func gzipContent(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TextMetadata summarizes a text file for compression recommendations
type TextMetadata struct {
	Format     string `json:"format"`
	Lines      int    `json:"lines"`
	Words      int    `json:"words"`
	Characters int    `json:"characters"`
}

// Metadata inspects a text file without transforming it
func (t *TextTransformer) Metadata(file domain.SourceFile) TextMetadata {
	content := string(file.Data)
	return TextMetadata{
		Format:     detectTextFormat(file.Name),
		Lines:      len(strings.Split(content, "\n")),
		Words:      len(strings.Fields(content)),
		Characters: len(content),
	}
}
