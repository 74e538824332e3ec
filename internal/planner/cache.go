package planner

// planSlot holds the single resident plan of a builder. The builder is
// single-writer, so the slot carries no lock.
type planSlot struct {
	fingerprint string
	plan        *Plan
}

func (s *planSlot) get(fingerprint string) (*Plan, bool) {
	if s.plan != nil && s.fingerprint == fingerprint {
		return s.plan, true
	}
	return nil, false
}

// reset drops the resident plan before a rebuild. A failed compile must
// never leave a stale plan behind.
func (s *planSlot) reset() {
	s.fingerprint = ""
	s.plan = nil
}

func (s *planSlot) put(fingerprint string, p *Plan) {
	s.fingerprint = fingerprint
	s.plan = p
}
