package recognition

// resultHistory turns a provider's flat transcript stream into indexed result
// events. An open interim hypothesis is revised in place; a final freezes the
// entry and the next text starts a new one. Each apply reports the history
// tail starting at the first changed entry, so consumers never re-scan
// already-settled indices.
type resultHistory struct {
	entries     []Entry
	openInterim bool
	sawFinal    bool
}

// apply records one transcript update and returns the resulting event.
// Empty transcripts are dropped; the second return is false for them.
func (h *resultHistory) apply(text string, confidence float64, isFinal bool) (Result, bool) {
	if text == "" {
		return Result{}, false
	}
	if isFinal && h.sawFinal {
		// Separate consecutive finalized utterances: the accumulator
		// downstream concatenates entry text verbatim.
		text = " " + text
	}

	entry := Entry{
		Alternatives: []Alternative{{Transcript: text, Confidence: confidence}},
		IsFinal:      isFinal,
	}

	idx := len(h.entries)
	if h.openInterim {
		idx = len(h.entries) - 1
		h.entries[idx] = entry
	} else {
		h.entries = append(h.entries, entry)
	}
	h.openInterim = !isFinal
	if isFinal {
		h.sawFinal = true
	}

	tail := make([]Entry, len(h.entries)-idx)
	copy(tail, h.entries[idx:])
	return Result{Index: idx, Entries: tail}, true
}
