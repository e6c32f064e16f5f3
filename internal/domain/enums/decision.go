package enums

type Decision string

const (
	DecisionLike    Decision = "LIKE"
	DecisionDislike Decision = "DISLIKE"
)

func (d Decision) Valid() bool {
	return d == DecisionLike || d == DecisionDislike
}
