package pta

// CallEffect is a set of adjustments a plugin requests for a new call edge.
type CallEffect uint8

const (
	// SkipReturn suppresses the edges from the callee's return variables to
	// the call's result variable.
	SkipReturn CallEffect = 1 << iota
)

// Plugin observes the solver. Hooks run synchronously inside the fixpoint
// loop and must not retain the diff sets they are given.
type Plugin interface {
	OnStart()
	// OnNewMethod is called once per context-sensitive method, before its
	// statements are processed.
	OnNewMethod(m *CSMethod)
	// OnNewPointsToSet is called when the points-to set of p grows by diff.
	OnNewPointsToSet(p Pointer, diff *PointsToSet)
	// OnNewCallEdge is called once per new call edge, before arguments and
	// results are wired.
	OnNewCallEdge(e *Edge) CallEffect
	OnFinish()
}

// NopPlugin implements every hook as a no-op. Embed it to implement only
// some hooks.
type NopPlugin struct{}

func (NopPlugin) OnStart()                               {}
func (NopPlugin) OnNewMethod(*CSMethod)                  {}
func (NopPlugin) OnNewPointsToSet(Pointer, *PointsToSet) {}
func (NopPlugin) OnNewCallEdge(*Edge) CallEffect         { return 0 }
func (NopPlugin) OnFinish()                              {}

type compositePlugin []Plugin

func (ps compositePlugin) OnStart() {
	for _, p := range ps {
		p.OnStart()
	}
}

func (ps compositePlugin) OnNewMethod(m *CSMethod) {
	for _, p := range ps {
		p.OnNewMethod(m)
	}
}

func (ps compositePlugin) OnNewPointsToSet(ptr Pointer, diff *PointsToSet) {
	for _, p := range ps {
		p.OnNewPointsToSet(ptr, diff)
	}
}

func (ps compositePlugin) OnNewCallEdge(e *Edge) CallEffect {
	var effect CallEffect
	for _, p := range ps {
		effect |= p.OnNewCallEdge(e)
	}
	return effect
}

func (ps compositePlugin) OnFinish() {
	for _, p := range ps {
		p.OnFinish()
	}
}
