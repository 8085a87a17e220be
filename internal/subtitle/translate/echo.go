package translate

import "context"

// EchoOracle answers every batch with its own source text, round-tripped
// through correlation format v1. It backs the "echo" engine used for dry runs.
type EchoOracle struct{}

func (EchoOracle) Name() string {
	return "echo"
}

func (EchoOracle) Translate(_ context.Context, batch []Segment) Outcome {
	request := EncodeSegments(batch)
	response := EncodeResponse(batch)

	translations, warnings, err := DecodeResponse(response)
	if err != nil {
		out := Failure(err)
		out.Request = request
		return out
	}
	out := Classify(batch, translations)
	out.Warnings = warnings
	out.Request = request
	out.Response = response
	return out
}
