package model

// Nonzero is a single entry of a sparse matrix in triplet form.
type Nonzero struct {
	Row int
	Col int
	Val float64
}

// Incidence is a sparse 0/1 device-to-bus connectivity matrix with buses as
// rows and devices as columns. Each device column holds exactly one entry.
type Incidence struct {
	Rows    int
	Cols    int
	Entries []Nonzero
}

// NewIncidence creates an empty incidence matrix of the given dimensions.
func NewIncidence(buses, devices int) *Incidence {
	return &Incidence{Rows: buses, Cols: devices}
}

// Connect attaches device dev to bus.
func (m *Incidence) Connect(bus, dev int) {
	m.Entries = append(m.Entries, Nonzero{Row: bus, Col: dev, Val: 1})
}

// DevicesAt returns the device columns attached to the given bus.
func (m *Incidence) DevicesAt(bus int) []int {
	if m == nil {
		return nil
	}
	var devs []int
	for _, nz := range m.Entries {
		if nz.Row == bus && nz.Val != 0 {
			devs = append(devs, nz.Col)
		}
	}
	return devs
}

// ByRow expands the matrix to a per-bus list of device columns.
func (m *Incidence) ByRow() [][]int {
	if m == nil {
		return nil
	}
	rows := make([][]int, m.Rows)
	for _, nz := range m.Entries {
		if nz.Val != 0 {
			rows[nz.Row] = append(rows[nz.Row], nz.Col)
		}
	}
	return rows
}
