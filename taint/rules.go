package taint

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/pta/ir"
)

type Source struct {
	Method *ir.Method
	Type   ir.Type
}

type Sink struct {
	Method *ir.Method
	Index  int
}

type Transfer struct {
	Method   *ir.Method
	From, To Slot
	Type     ir.Type
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s: %v -> %v (%s)", t.Method, t.From, t.To, t.Type)
}

// Rules are taint rules resolved against a program. Duplicate rules are
// removed; the remaining rules keep their order in the file.
type Rules struct {
	Sources   []Source
	Sinks     []Sink
	Transfers []Transfer

	sources   map[*ir.Method][]Source
	sinks     map[*ir.Method][]Sink
	transfers map[*ir.Method][]Transfer
}

// SourcesOf returns the source rules for m.
func (r *Rules) SourcesOf(m *ir.Method) []Source { return r.sources[m] }

// SinksOf returns the sink rules for m.
func (r *Rules) SinksOf(m *ir.Method) []Sink { return r.sinks[m] }

// TransfersOf returns the transfer rules for m.
func (r *Rules) TransfersOf(m *ir.Method) []Transfer { return r.transfers[m] }

// Empty reports whether there are no rules at all.
func (r *Rules) Empty() bool {
	return len(r.Sources) == 0 && len(r.Sinks) == 0 && len(r.Transfers) == 0
}

// Resolve binds the method signatures and type names of c to prog. Sources
// whose type differs from the return type of their method can never fire;
// they are dropped with a warning to logger. A nil logger logs to the
// standard logger.
func (c *Config) Resolve(prog *ir.Program, logger log.FieldLogger) (*Rules, error) {
	r := &Rules{
		sources:   make(map[*ir.Method][]Source),
		sinks:     make(map[*ir.Method][]Sink),
		transfers: make(map[*ir.Method][]Transfer),
	}
	if c == nil {
		return r, nil
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	lookupMethod := func(sig string) (*ir.Method, error) {
		if m := prog.MethodBySignature(sig); m != nil {
			return m, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, sig)
	}
	lookupType := func(name string) (ir.Type, error) {
		if t := prog.TypeByName(name); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}

	seenSources := make(map[Source]bool)
	for _, sc := range c.Sources {
		m, err := lookupMethod(sc.Method)
		if err != nil {
			return nil, err
		}
		t, err := lookupType(sc.Type)
		if err != nil {
			return nil, err
		}
		if t != m.ReturnType {
			logger.Warnf("Source %s: type %s does not match return type %s, ignoring", m, t, typeName(m.ReturnType))
			continue
		}
		src := Source{m, t}
		if !seenSources[src] {
			seenSources[src] = true
			r.Sources = append(r.Sources, src)
			r.sources[m] = append(r.sources[m], src)
		}
	}

	seenSinks := make(map[Sink]bool)
	for _, sc := range c.Sinks {
		m, err := lookupMethod(sc.Method)
		if err != nil {
			return nil, err
		}
		if sc.Index < 0 || sc.Index >= len(m.Params) {
			return nil, fmt.Errorf("%w: sink %s has no argument %d", ErrBadSlot, m, sc.Index)
		}
		sink := Sink{m, sc.Index}
		if !seenSinks[sink] {
			seenSinks[sink] = true
			r.Sinks = append(r.Sinks, sink)
			r.sinks[m] = append(r.sinks[m], sink)
		}
	}

	seenTransfers := make(map[Transfer]bool)
	for _, tc := range c.Transfers {
		m, err := lookupMethod(tc.Method)
		if err != nil {
			return nil, err
		}
		t, err := lookupType(tc.Type)
		if err != nil {
			return nil, err
		}
		if err := checkTransfer(m, tc.From, tc.To); err != nil {
			return nil, err
		}
		tr := Transfer{m, tc.From, tc.To, t}
		if !seenTransfers[tr] {
			seenTransfers[tr] = true
			r.Transfers = append(r.Transfers, tr)
			r.transfers[m] = append(r.transfers[m], tr)
		}
	}

	return r, nil
}

func checkTransfer(m *ir.Method, from, to Slot) error {
	check := func(s Slot) error {
		switch {
		case s == Base:
			if m.Static {
				return fmt.Errorf("%w: static method %s has no base", ErrBadSlot, m)
			}
		case s == Result:
			if m.ReturnType == nil {
				return fmt.Errorf("%w: void method %s has no result", ErrBadSlot, m)
			}
		case int(s) >= len(m.Params):
			return fmt.Errorf("%w: %s has no argument %d", ErrBadSlot, m, s)
		}
		return nil
	}

	if from == Result {
		return fmt.Errorf("%w: transfer from result of %s", ErrBadSlot, m)
	}
	if from == to {
		return fmt.Errorf("%w: transfer from %v to itself in %s", ErrBadSlot, from, m)
	}
	if err := check(from); err != nil {
		return err
	}
	return check(to)
}

func typeName(t ir.Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}
