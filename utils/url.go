package utils

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"canvascli/internal"
)

// CanvasURLInfo contains identifiers extracted from a pasted Canvas URL
type CanvasURLInfo struct {
	OriginalURL  string
	Host         string
	CourseID     int64
	AssignmentID int64 // 0 when the URL points at a course or its files tab
}

// HasAssignment reports whether the URL named a specific assignment
func (u *CanvasURLInfo) HasAssignment() bool {
	return u.AssignmentID > 0
}

// CanvasURLParser extracts course and assignment identifiers from the known
// Canvas URL shapes
type CanvasURLParser struct {
	assignmentPattern *regexp.Regexp
	coursePattern     *regexp.Regexp
}

// NewCanvasURLParser creates a parser with the predefined patterns
func NewCanvasURLParser() *CanvasURLParser {
	return &CanvasURLParser{
		// https://school.instructure.com/courses/123/assignments/456
		assignmentPattern: regexp.MustCompile(`^/courses/(\d+)/assignments/(\d+)(?:/.*)?$`),
		// https://school.instructure.com/courses/123 or .../courses/123/files
		coursePattern: regexp.MustCompile(`^/courses/(\d+)(?:/files(?:/.*)?)?/?$`),
	}
}

// Parse extracts numeric identifiers from rawURL. A URL that is not a valid
// http(s) URL or does not match the known course/assignment shape fails with
// a URLParse error; no network calls are made here.
func (p *CanvasURLParser) Parse(rawURL string) (*CanvasURLInfo, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, internal.NewURLParseError(rawURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, internal.NewURLParseError(rawURL)
	}

	info := &CanvasURLInfo{
		OriginalURL: rawURL,
		Host:        parsed.Hostname(),
	}

	if m := p.assignmentPattern.FindStringSubmatch(parsed.Path); m != nil {
		courseID, err := parseID(m[1])
		if err != nil {
			return nil, internal.NewURLParseError(rawURL)
		}
		assignmentID, err := parseID(m[2])
		if err != nil {
			return nil, internal.NewURLParseError(rawURL)
		}
		info.CourseID = courseID
		info.AssignmentID = assignmentID
		return info, nil
	}

	if m := p.coursePattern.FindStringSubmatch(parsed.Path); m != nil {
		courseID, err := parseID(m[1])
		if err != nil {
			return nil, internal.NewURLParseError(rawURL)
		}
		info.CourseID = courseID
		return info, nil
	}

	return nil, internal.NewURLParseError(rawURL)
}

// parseID parses a digit-only capture group. The patterns guarantee the input
// is numeric, so overflow is the only possible failure.
func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
