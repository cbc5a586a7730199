package target

import "github.com/pkg/errors"

// Objects sums the gradients and costs of its members.
type Objects struct {
	members []Source
	scratch *Gradient
}

// NewObjects groups sources into one.
func NewObjects(members ...Source) *Objects {
	return &Objects{members: members}
}

// Append adds a member.
func (o *Objects) Append(s Source) { o.members = append(o.members, s) }

// Members returns the grouped sources.
func (o *Objects) Members() []Source { return o.members }

func (o *Objects) Gradient(p Pose, g *Gradient) error {
	g.Reset()
	if o.scratch == nil || o.scratch.NElements() != g.NElements() {
		o.scratch = NewGradient(g.NElements())
	}
	for i, m := range o.members {
		if err := m.Gradient(p, o.scratch); err != nil {
			return errors.Wrapf(err, "object %d", i)
		}
		g.Add(o.scratch)
	}
	return nil
}

// Cost sums the members that implement Coster; the others contribute zero.
func (o *Objects) Cost(p Pose) (float64, error) {
	total := 0.0
	for i, m := range o.members {
		c, ok := m.(Coster)
		if !ok {
			continue
		}
		v, err := c.Cost(p)
		if err != nil {
			return 0, errors.Wrapf(err, "object %d", i)
		}
		total += v
	}
	return total, nil
}
