package flow

// PassThrough forwards every element unchanged. It is handy as a named tap
// point inside a chain and as the identity pipeline of an adapter.
type PassThrough struct {
	stage
}

var _ Stage = (*PassThrough)(nil)

func NewPassThrough(name string) *PassThrough {
	pass := &PassThrough{
		stage: newStage(name, "pass_through"),
	}
	parallelismGauge.WithLabelValues(name, "pass_through").Set(1)
	go pass.doStream()
	return pass
}

func (p *PassThrough) doStream() {
	defer p.finish()
	for elem := range p.in {
		p.emit(elem)
	}
}
