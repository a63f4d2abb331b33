package bifurcation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
)

type Kind int

const (
	Unclassified Kind = iota
	Fold
	BranchPoint
	Hopf
)

var kindNames = map[Kind]string{
	Unclassified: "unclassified",
	Fold:         "fold",
	BranchPoint:  "branch-point",
	Hopf:         "hopf",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return errors.Errorf("unknown bifurcation kind %q", s)
}

// Eigenvalue is a JSON-friendly complex number.
type Eigenvalue struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// Record is a detected bifurcation. It is not modified after Localize
// returns it.
type Record struct {
	Kind       Kind            `json:"kind"`
	Arclength  float64         `json:"arclength"`
	X          dynamo.Extended `json:"x"`
	Tangent    dynamo.Extended `json:"tangent"`
	Test       string          `json:"test"`
	Value      float64         `json:"value"`
	Changed    []string        `json:"changed"`
	// Crossed is the signed change in the number of unstable eigenvalues
	// across the bracket; zero when stability is unknown.
	Crossed    int             `json:"crossed"`
	Iterations int             `json:"iterations"`
	Localized  bool            `json:"localized"`
	Spectrum   []Eigenvalue    `json:"spectrum,omitempty"`
	Error      string          `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r Record) Lambda() float64 { return r.X.Lambda() }

func (r Record) String() string {
	status := "localized"
	if !r.Localized {
		status = "not localized"
	}
	return fmt.Sprintf("%s at λ=%.6g s=%.4f (%s by %s, %d iterations)",
		r.Kind, r.Lambda(), r.Arclength, status, r.Test, r.Iterations)
}
