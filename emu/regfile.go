package emu

import "sort"

// RegFile is the architectural register file: register name to value.
//
// Names are free-form (R1, F0, p7). A register that was never written reads
// as 0 and becomes part of the file, matching how the out-of-order core
// binds a fresh zero-valued register the first time a name is read.
type RegFile struct {
	values map[string]float64
}

// NewRegFile creates an empty register file.
func NewRegFile() *RegFile {
	return &RegFile{values: make(map[string]float64)}
}

// ReadReg returns the value of a register, binding it to 0 if unseen.
func (r *RegFile) ReadReg(name string) float64 {
	v, ok := r.values[name]
	if !ok {
		r.values[name] = 0
	}
	return v
}

// WriteReg writes a value to a register.
func (r *RegFile) WriteReg(name string, value float64) {
	r.values[name] = value
}

// Lookup returns a register's value without binding it.
func (r *RegFile) Lookup(name string) (float64, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns a copy of every bound register.
func (r *RegFile) Values() map[string]float64 {
	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Names returns the bound register names in sorted order.
func (r *RegFile) Names() []string {
	names := make([]string, 0, len(r.values))
	for k := range r.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
