// Package discount computes product discount candidates for a cart from a merchant-authored
// configuration. Evaluation is a pure function of its input: no I/O, no shared state, and no
// error path. Anything the engine cannot read degrades to "no discount".
package discount

// Strategy builds candidates for one discount mechanism.
type Strategy struct {
	Name  string
	Build func(lines []CartLine, cfg ParsedConfig) []Candidate
}

// Outcome summarises how an evaluation ended.
type Outcome string

const (
	OutcomeEmptyCart     Outcome = "empty_cart"
	OutcomeClassInactive Outcome = "class_not_active"
	OutcomeNoCandidates  Outcome = "no_candidates"
	OutcomeApplied       Outcome = "applied"
)

// Strategy names, in evaluation order.
const (
	StrategyMultiProduct = "multi_product"
	StrategyBogo         = "bogo"
	StrategyVolume       = "volume"
)

// Strategies returns the mechanisms in the order their candidates are concatenated.
func Strategies() []Strategy {
	return []Strategy{
		{Name: StrategyMultiProduct, Build: BuildMultiProductCandidates},
		{Name: StrategyBogo, Build: BuildBogoCandidates},
		{Name: StrategyVolume, Build: BuildVolumeCandidates},
	}
}

// StrategyCount records how many candidates a strategy produced.
type StrategyCount struct {
	Name       string `json:"name"`
	Candidates int    `json:"candidates"`
}

// Evaluation is a Result plus the details callers use for logging and metrics.
type Evaluation struct {
	Result     Result          `json:"result"`
	Config     ParsedConfig    `json:"config"`
	Outcome    Outcome         `json:"outcome"`
	Strategies []StrategyCount `json:"strategies"`
}

// Candidates returns every candidate of the evaluation in output order.
func (e Evaluation) Candidates() []Candidate {
	var out []Candidate
	for _, op := range e.Result.Operations {
		if op.AddProductDiscounts != nil {
			out = append(out, op.AddProductDiscounts.Candidates...)
		}
	}
	return out
}

// Run evaluates the input and returns the operation envelope.
func Run(in Input) Result {
	return Evaluate(in).Result
}

// Evaluate short-circuits empty carts and discounts without the product class, parses the
// configuration, then runs the strategies.
func Evaluate(in Input) Evaluation {
	if len(in.Cart.Lines) == 0 {
		return Evaluation{Result: NoOp(), Config: DefaultConfig(), Outcome: OutcomeEmptyCart}
	}
	if !in.Discount.HasClass(ProductDiscountClass) {
		return Evaluation{Result: NoOp(), Config: DefaultConfig(), Outcome: OutcomeClassInactive}
	}
	return EvaluateConfig(in.Cart.Lines, Parse(in.Discount.Metafield.Raw()))
}

// EvaluateConfig runs multi-product, BOGO and volume strategies in that order against an
// already parsed configuration and wraps every candidate in a single apply-all operation.
// Candidates that target the same line are kept; stacking is left to the platform.
func EvaluateConfig(lines []CartLine, cfg ParsedConfig) Evaluation {
	eval := Evaluation{Config: cfg}
	var candidates []Candidate
	for _, strategy := range Strategies() {
		built := strategy.Build(lines, cfg)
		eval.Strategies = append(eval.Strategies, StrategyCount{Name: strategy.Name, Candidates: len(built)})
		candidates = append(candidates, built...)
	}
	if len(candidates) == 0 {
		eval.Result = NoOp()
		eval.Outcome = OutcomeNoCandidates
		return eval
	}
	eval.Result = Result{Operations: []Operation{{
		AddProductDiscounts: &ProductDiscountsAdd{
			Candidates:        candidates,
			SelectionStrategy: SelectionStrategyAll,
		},
	}}}
	eval.Outcome = OutcomeApplied
	return eval
}
