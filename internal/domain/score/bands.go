package score

// SubsystemOf maps each source stream to the subsystem it scores. The switch
// is exhaustive over the closed source set; an unmapped source is a
// programming error caught by the false return.
func SubsystemOf(src Source) (Subsystem, bool) {
	switch src {
	case SourcePaO2FiO2:
		return Respiration, true
	case SourcePlatelets:
		return Coagulation, true
	case SourceBilirubin:
		return Liver, true
	case SourceMAP, SourceNorepiEquiv:
		return Cardiovascular, true
	case SourceGCS:
		return Neurologic, true
	case SourceCreatinine:
		return Renal, true
	}
	return "", false
}

// SourcesFor returns the source streams feeding one subsystem.
func SourcesFor(sub Subsystem) []Source {
	switch sub {
	case Respiration:
		return []Source{SourcePaO2FiO2}
	case Coagulation:
		return []Source{SourcePlatelets}
	case Liver:
		return []Source{SourceBilirubin}
	case Cardiovascular:
		return []Source{SourceMAP, SourceNorepiEquiv}
	case Neurologic:
		return []Source{SourceGCS}
	case Renal:
		return []Source{SourceCreatinine}
	}
	return nil
}

// Band converts one observed value into its ordinal severity. Each band is a
// monotonic step function with explicit boundaries; higher is worse.
func Band(src Source, value float64) int {
	switch src {
	case SourcePaO2FiO2:
		switch {
		case value >= 400:
			return 0
		case value >= 300:
			return 1
		case value >= 200:
			return 2
		case value >= 100:
			return 3
		default:
			return 4
		}
	case SourcePlatelets:
		switch {
		case value >= 150:
			return 0
		case value >= 100:
			return 1
		case value >= 50:
			return 2
		case value >= 20:
			return 3
		default:
			return 4
		}
	case SourceBilirubin:
		switch {
		case value < 1.2:
			return 0
		case value < 2.0:
			return 1
		case value < 6.0:
			return 2
		case value < 12.0:
			return 3
		default:
			return 4
		}
	case SourceMAP:
		// Hypotension without vasopressor support caps at 1; the
		// norepinephrine-equivalent stream carries the higher bands.
		if value >= 70 {
			return 0
		}
		return 1
	case SourceNorepiEquiv:
		switch {
		case value <= 0:
			return 0
		case value <= 0.05:
			return 2
		case value <= 0.1:
			return 3
		default:
			return 4
		}
	case SourceGCS:
		switch {
		case value >= 15:
			return 0
		case value >= 13:
			return 1
		case value >= 10:
			return 2
		case value >= 6:
			return 3
		default:
			return 4
		}
	case SourceCreatinine:
		switch {
		case value < 1.2:
			return 0
		case value < 2.0:
			return 1
		case value < 3.5:
			return 2
		case value < 5.0:
			return 3
		default:
			return 4
		}
	}
	return 0
}
