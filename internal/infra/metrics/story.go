package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		storyTransitionsTotal,
		storyRejectionsTotal,
		storyTokensCommitted,
		storiesFinishedTotal,
	)
}

var (
	storyTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_phase_transitions_total",
			Help: "Conversation phase changes.",
		},
		[]string{"from", "to"},
	)

	storyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_rejections_total",
			Help: "Story messages refused before or during completion.",
		},
		[]string{"reason"}, // budget | too_long | unavailable | busy
	)

	storyTokensCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "story_tokens_committed_total",
			Help: "Tokens added to user ledgers.",
		},
	)

	storiesFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_finished_total",
			Help: "Stories closed with /end_story or abandoned with /end_chat.",
		},
		[]string{"how"},
	)
)

func IncPhaseTransition(from, to string) {
	if from == to {
		return
	}
	storyTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncStoryRejection(reason string) {
	storyRejectionsTotal.WithLabelValues(norm(reason)).Inc()
}

func AddTokensCommitted(n int64) {
	if n > 0 {
		storyTokensCommitted.Add(float64(n))
	}
}

func IncStoryFinished(how string) {
	storiesFinishedTotal.WithLabelValues(norm(how)).Inc()
}
