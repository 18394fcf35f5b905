package dice

import "go.uber.org/zap"

// Roller rolls expressions and records every roll in the log.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller returns a Roller drawing from src.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger.Named("dice")}
}

// Roll evaluates expr and logs the result at Debug.
func (r *Roller) Roll(expr Expression) Result {
	res := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", res.Expression),
		zap.Ints("rolled", res.Rolled),
		zap.Ints("kept", res.Kept),
		zap.Int("modifier", res.Modifier),
		zap.Int("total", res.Total()),
	)
	return res
}

// RollExpr parses s and rolls it.
func (r *Roller) RollExpr(s string) (Result, error) {
	e, err := Parse(s)
	if err != nil {
		return Result{}, err
	}
	return r.Roll(e), nil
}
