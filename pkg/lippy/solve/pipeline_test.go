package solve_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/perdasilva/lippy/pkg/lippy"
	"github.com/perdasilva/lippy/pkg/lippy/solve"
	"github.com/perdasilva/lippy/pkg/lippy/textexpr"
)

var _ = Describe("modeling to solve pipeline", func() {
	var (
		problem *lippy.Problem
		runner  *solve.Runner
		ctx     context.Context
	)

	constraint := func(src, description string, clauses ...string) {
		body, err := textexpr.ParseComparison(src)
		Expect(err).ToNot(HaveOccurred())
		decl := lippy.ConstraintDecl{Body: body, Description: description}
		for _, cl := range clauses {
			parsed, err := textexpr.ParseClause(cl)
			Expect(err).ToNot(HaveOccurred())
			decl.Clauses = append(decl.Clauses, parsed)
		}
		Expect(problem.AddConstraints(decl)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		runner = solve.New()

		params, err := lippy.ParamsFromJSON([]byte(`{
			"workers": ["w1", "w2"],
			"tasks":   ["t1", "t2"],
			"cost": {
				"w1": {"t1": 2, "t2": 3},
				"w2": {"t1": 3, "t2": 1}
			}
		}`))
		Expect(err).ToNot(HaveOccurred())

		problem = lippy.New("assignment", lippy.WithParams(params))
		Expect(problem.AddVariables(lippy.VariableDecl{
			Name: "assign",
			Clauses: []lippy.Clause{
				lippy.Over("w", lippy.Symbol("workers")),
				lippy.Over("t", lippy.Symbol("tasks")),
			},
			Type: lippy.Binary,
		})).To(Succeed())

		constraint("sum(assign(_, t)) == 1", "task {t} covered", "t in tasks")
		constraint("sum(assign(w, _)) <= 1", "worker {w} load", "w in workers")

		objective, err := textexpr.Parse(`sum(w in workers, t in tasks, cost[w][t] * assign(w, t))`)
		Expect(err).ToNot(HaveOccurred())
		Expect(problem.SetObjective(objective, lippy.Minimize)).To(Succeed())
	})

	It("solves the assignment to optimality in-process", func() {
		solution, err := runner.Solve(ctx, problem)
		Expect(err).ToNot(HaveOccurred())
		Expect(solution.Backend).To(Equal("sat"))
		Expect(solution.Objective).To(Equal(3.0))
		Expect(solution.Value("assign(w1,t1)")).To(Equal(1.0))
		Expect(solution.Value("assign(w2,t2)")).To(Equal(1.0))
		Expect(solution.Value("assign(w1,t2)")).To(Equal(0.0))
		Expect(solution.Value("assign(w2,t1)")).To(Equal(0.0))
	})

	It("reports conflicting declarations as infeasible", func() {
		constraint("sum(assign(w1_busy, _)) >= 9", "impossible", "w1_busy in workers")

		_, err := runner.Solve(ctx, problem)
		Expect(err).To(MatchError(solve.ErrInfeasible))

		var infeasible *solve.InfeasibleError
		Expect(errors.As(err, &infeasible)).To(BeTrue())
		Expect(infeasible.Constraints).ToNot(BeEmpty())
	})

	It("keeps only the last declared objective", func() {
		replacement, err := textexpr.Parse(`assign("w1", "t2")`)
		Expect(err).ToNot(HaveOccurred())
		Expect(problem.SetObjective(replacement, lippy.Maximize)).To(Succeed())

		solution, err := runner.Solve(ctx, problem)
		Expect(err).ToNot(HaveOccurred())
		Expect(solution.Objective).To(Equal(1.0))
		Expect(solution.Value("assign(w1,t2)")).To(Equal(1.0))
	})

	It("round-trips the snapshot through the LP writer deterministically", func() {
		input, err := solve.Snapshot(problem)
		Expect(err).ToNot(HaveOccurred())

		var first, second strings.Builder
		Expect(solve.WriteLP(&first, input)).To(Succeed())
		Expect(solve.WriteLP(&second, input)).To(Succeed())
		Expect(first.String()).To(Equal(second.String()))
		Expect(first.String()).To(ContainSubstring("Binary"))
		Expect(first.String()).To(ContainSubstring("task_t1_covered:"))
	})
})
