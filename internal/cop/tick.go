package cop

// TickUnitPositions nudges every unit by a small random offset, refreshes
// lastUpdated and returns the post-tick snapshot.
func (s *Store) TickUnitPositions() []Unit {
	// Offsets are drawn before taking the lock so readers wait only for the
	// assignments.
	type offset struct{ dLat, dLon float64 }
	offsets := make([]offset, SeedUnitCount)
	for i := range offsets {
		offsets[i].dLat, offsets[i].dLon = s.gen.Drift()
	}

	s.unitsMu.Lock()
	defer s.unitsMu.Unlock()
	now := s.now().UTC()
	out := make([]Unit, 0, len(s.unitOrder))
	for i, id := range s.unitOrder {
		u := s.units[id]
		o := offsets[i%len(offsets)]
		u.Latitude += o.dLat
		u.Longitude += o.dLon
		u.LastUpdated = now
		out = append(out, *u)
	}
	return out
}

// TickSpectrumRefresh replaces the spectrum readings with one fresh reading
// per band. Readers see either the old or the new set, never a mix.
func (s *Store) TickSpectrumRefresh() []SpectrumActivity {
	next := s.newSpectrum()

	s.spectrumMu.Lock()
	s.spectrum = next
	s.spectrumMu.Unlock()

	out := make([]SpectrumActivity, len(next))
	copy(out, next)
	return out
}

// TickIncidentSpawn appends one random incident and returns it.
func (s *Store) TickIncidentSpawn() Incident {
	typ := s.gen.IncidentType()
	lat, lon := s.gen.Position()
	inc := Incident{
		ID:          s.newID(),
		Type:        typ,
		Description: typ.Description(),
		Severity:    s.gen.Severity(),
		Latitude:    lat,
		Longitude:   lon,
		Timestamp:   s.now().UTC(),
	}

	s.incidentsMu.Lock()
	s.incidents = append(s.incidents, inc)
	s.incidentsMu.Unlock()
	return inc
}

func (s *Store) newSpectrum() []SpectrumActivity {
	now := s.now().UTC()
	out := make([]SpectrumActivity, 0, len(Bands))
	for _, b := range Bands {
		lat, lon := s.gen.Position()
		out = append(out, SpectrumActivity{
			ID:        s.newID(),
			Band:      b,
			Intensity: s.gen.Intensity(),
			Latitude:  lat,
			Longitude: lon,
			Timestamp: now,
		})
	}
	return out
}
