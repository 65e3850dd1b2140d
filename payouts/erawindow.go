package payouts

// EraWindow is the range of past eras checked for unclaimed payouts,
// StartEra >= EndEra >= 1
type EraWindow struct {
	StartEra uint32 `json:"startEra"`
	EndEra   uint32 `json:"endEra"`
}

// NewEraWindow starts at the era before activeEra and reaches back at most
// maxSupportedEras eras, never below era 1
func NewEraWindow(activeEra, maxSupportedEras uint32) EraWindow {

	if maxSupportedEras == 0 {
		maxSupportedEras = 1
	}

	startEra := uint32(1)
	if activeEra > 1 {
		startEra = activeEra - 1
	}

	endEra := uint32(1)
	if startEra > maxSupportedEras {
		endEra = startEra - maxSupportedEras + 1
	}

	return EraWindow{
		StartEra: startEra,
		EndEra:   endEra,
	}
}

func (w EraWindow) Contains(era uint32) bool {
	return era >= w.EndEra && era <= w.StartEra
}

func (w EraWindow) Len() int {
	return int(w.StartEra-w.EndEra) + 1
}

// Eras lists the window's eras, highest first
func (w EraWindow) Eras() []uint32 {

	eras := make([]uint32, 0, w.Len())
	for era := w.StartEra; era >= w.EndEra; era-- {
		eras = append(eras, era)

		// uint32 would wrap below zero
		if era == 0 {
			break
		}
	}

	return eras
}
