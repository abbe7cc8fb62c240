package main

// Sample is a sentence to reword.
type Sample struct {
	Name string
	Text string
}

// Samples are work sentences of increasing length, written with the kind of
// non-native English mistakes the rewording is meant to smooth over.
// Used by the default timing mode.
var Samples = []Sample{
	{
		Name: "tiny",
		Text: "Can you review the PR when you have time?",
	},
	{
		Name: "short",
		Text: "I think the deploy is ready but not sure about the error handling part.",
	},
	{
		Name: "medium",
		Text: "The deployment yesterday went smooth and we didn't saw any errors in the logs, only the search endpoint is a bit slower than we expected.",
	},
	{
		Name: "long",
		Text: "After investigating the logs I found that the problem is related to how we handle token refresh when the session expires while the user is in the middle of filling a long form, so they lose all the data they typed.",
	},
	{
		Name: "max",
		Text: "I would like to propose that we move the weekly sync from Monday to Wednesday because on Mondays half of the team is still catching up with the messages from the weekend and the other half is in the planning meeting with product, which means we never have everybody in the room and the decisions we take have to be explained again later in the week anyway.",
	},
}

// QualitySamples exercise specific rewording problems. Used by -quality mode,
// where each output is printed next to its input.
var QualitySamples = []Sample{
	{
		Name: "subtle",
		Text: "Please let me know if you have any doubt about the proposal.",
	},
	{
		Name: "technical",
		Text: "The p99 latency of the API went from 120ms to 800ms after we enabled the new cache layer, I suspect is the serialization.",
	},
	{
		Name: "informal",
		Text: "hey guys the build is broken again lol can someone look at it asap",
	},
	{
		Name: "academic",
		Text: "In this work we are proposing a novel approach for the detection of anomalies in time series which outperform the state of the art.",
	},
	{
		Name: "complex",
		Text: "Although the migration was planned for Q3, given that the vendor has delayed the release of the new API and our team is already overloaded with the compliance work, I think we should consider to postpone it.",
	},
}
