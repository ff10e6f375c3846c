// Package redeemcode generates and syntax-checks human-typable redeem codes
// of the form PFX-XXXX-XXXX.
package redeemcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jcq/jcq-api/internal/pkg/apperror"
)

// Alphabet has 32 symbols; 0, O, 1 and I are left out because they are
// misread when typed from a printed card.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	groupLen  = 4
	groups    = 2
	MaxBatch  = 100
	maxPrefix = 8
)

var (
	ErrInvalidFormat = apperror.New(apperror.KindValidation, "INVALID_CODE_FORMAT", "code format is invalid")
	ErrInvalidBatch  = apperror.New(apperror.KindValidation, "INVALID_BATCH_SIZE", fmt.Sprintf("batch size must be between 1 and %d", MaxBatch))
)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,8}$`)

// Generator produces codes with a fixed prefix.
type Generator struct {
	prefix  string
	pattern *regexp.Regexp
	rand    io.Reader
}

// NewGenerator returns a generator backed by crypto/rand.
func NewGenerator(prefix string) (*Generator, error) {
	return newGenerator(prefix, rand.Reader)
}

func newGenerator(prefix string, r io.Reader) (*Generator, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if len(prefix) > maxPrefix || !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("invalid code prefix %q", prefix)
	}
	class := "[" + Alphabet + "]"
	pattern := regexp.MustCompile(fmt.Sprintf("^%s-%s{%d}-%s{%d}$", regexp.QuoteMeta(prefix), class, groupLen, class, groupLen))
	return &Generator{prefix: prefix, pattern: pattern, rand: r}, nil
}

// Prefix returns the canonical prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Generate returns one random code.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, groupLen*groups)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(g.prefix) + 1 + groups*(groupLen+1))
	sb.WriteString(g.prefix)
	for i, b := range buf {
		if i%groupLen == 0 {
			sb.WriteByte('-')
		}
		// 256 is a multiple of 32, so masking keeps the distribution uniform.
		sb.WriteByte(Alphabet[b&31])
	}
	return sb.String(), nil
}

// GenerateBatch returns n distinct codes. Codes for which taken reports true
// are regenerated as well; taken may be nil.
func (g *Generator) GenerateBatch(n int, taken func(string) bool) ([]string, error) {
	if n < 1 || n > MaxBatch {
		return nil, ErrInvalidBatch
	}

	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for attempts := 0; len(codes) < n; attempts++ {
		if attempts > n*20 {
			return nil, fmt.Errorf("could not generate %d unique codes", n)
		}
		code, err := g.Generate()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		if taken != nil && taken(code) {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Normalize trims and upper-cases user input.
func Normalize(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// Parse canonicalizes input and checks its syntax. It never touches storage.
func (g *Generator) Parse(input string) (string, error) {
	code := Normalize(input)
	if !g.pattern.MatchString(code) {
		return "", ErrInvalidFormat
	}
	return code, nil
}

// Valid reports whether input is a syntactically valid code.
func (g *Generator) Valid(input string) bool {
	_, err := g.Parse(input)
	return err == nil
}
