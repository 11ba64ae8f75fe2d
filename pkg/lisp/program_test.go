package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/pkg/lisp"
	"ptc-lisp/pkg/value"
)

func defaultOpts() lisp.Opts {
	return lisp.Opts{LoopLimit: 10_000, PrintCharBudget: 4096, PmapMaxConcurrency: 4}
}

func TestArithmeticAndComparison(t *testing.T) {
	res, err := lisp.Run(`(+ 1 2 (* 3 4))`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(15), res.Return)

	res, err = lisp.Run(`(/ 1 2)`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Float(0.5), res.Return)

	res, err = lisp.Run(`(< 1 2 3)`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), res.Return)
}

func TestLetAndDestructuring(t *testing.T) {
	res, err := lisp.Run(`(let [[a b & rest] [1 2 3 4]] (+ a b (count rest)))`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), res.Return)

	res, err = lisp.Run(`(let [{:keys [x y] :or {y 10}} {:x 1}] (+ x y))`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(11), res.Return)
}

func TestDefnSelfRecursionAndClosureNamespaceSnapshot(t *testing.T) {
	src := `
(defn fact [n] (if (<= n 1) 1 (* n (fact (- n 1)))))
(fact 5)
`
	res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(120), res.Return)

	src2 := `
(defn helper [x] (+ x 1))
(def f (fn [x] (helper x)))
(def helper (fn [x] (+ x 100)))
(f 1)
`
	res2, err := lisp.Run(src2, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), res2.Return, "closure must see helper as it existed at creation time")
}

func TestHigherOrderBuiltins(t *testing.T) {
	res, err := lisp.Run(`(->> [1 2 3 4] (map (fn [x] (* x x))) (filter (fn [x] (> x 4))))`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Vector([]value.Value{value.Int(9), value.Int(16)}), res.Return)

	res, err = lisp.Run(`(reduce + 0 [1 2 3 4 5])`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(15), res.Return)
}

func TestWherePredicateCombinator(t *testing.T) {
	src := `(filter (where :age > 18) [{:age 10} {:age 20} {:age 30}])`
	res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	require.Equal(t, value.KindVector, res.Return.Kind)
	assert.Len(t, res.Return.Vector, 2)
}

func TestMapOps(t *testing.T) {
	res, err := lisp.Run(`(assoc-in {:a {:b 1}} [:a :b] 2)`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	v, ok := res.Return.Map.GetFlex(value.Keyword("a"))
	require.True(t, ok)
	inner, ok := v.Map.GetFlex(value.Keyword("b"))
	require.True(t, ok)
	assert.Equal(t, value.Int(2), inner)
}

func TestMemoryContractNonMapReturn(t *testing.T) {
	memory := value.MapOf(value.Keyword("count"), value.Int(1))
	res, err := lisp.Run(`42`, lisp.RunOpts{Memory: memory, Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), res.Return)
	assert.Equal(t, 0, res.MemoryDelta.Len())
	v, _ := res.Memory.GetFlex(value.Keyword("count"))
	assert.Equal(t, value.Int(1), v)
}

func TestMemoryContractMapWithoutResult(t *testing.T) {
	memory := value.NewOrderedMap()
	res, err := lisp.Run(`{:seen 1}`, lisp.RunOpts{Memory: memory, Eval: defaultOpts()})
	require.NoError(t, err)
	seen, ok := res.Memory.GetFlex(value.Keyword("seen"))
	require.True(t, ok)
	assert.Equal(t, value.Int(1), seen)
	deltaSeen, ok := res.MemoryDelta.GetFlex(value.Keyword("seen"))
	require.True(t, ok)
	assert.Equal(t, value.Int(1), deltaSeen)
}

func TestMemoryContractMapWithResult(t *testing.T) {
	memory := value.NewOrderedMap()
	res, err := lisp.Run(`{:result 99 :seen 1}`, lisp.RunOpts{Memory: memory, Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(99), res.Return)
	seen, ok := res.Memory.GetFlex(value.Keyword("seen"))
	require.True(t, ok)
	assert.Equal(t, value.Int(1), seen)
	_, hasResultInDelta := res.MemoryDelta.GetFlex(value.Keyword("result"))
	assert.False(t, hasResultInDelta)
}

func TestFailDefaultsReason(t *testing.T) {
	res, err := lisp.Run(`(fail {:message "boom"})`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, "fail", res.Sentinel)
	assert.Equal(t, "unspecified", res.FailReason)
	assert.Equal(t, "boom", res.FailMessage)
}

func TestReturnSentinelShortCircuits(t *testing.T) {
	src := `(do (return 1) (println "should not run") 2)`
	res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, "return", res.Sentinel)
	assert.Equal(t, value.Int(1), res.Return)
	assert.Empty(t, res.Prints)
}

func TestSentinelPropagatesThroughBuiltins(t *testing.T) {
	res, err := lisp.Run(`(+ 1 (return 2) 999)`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, "return", res.Sentinel)
	assert.Equal(t, value.Int(2), res.Return)

	res, err = lisp.Run(`(map (fn [x] (if (= x 2) (return :hit) x)) [1 2 3])`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, "return", res.Sentinel)
	assert.Equal(t, value.Keyword("hit"), res.Return)
}

func TestWhereAcceptsBuiltinAndNotEqualOperators(t *testing.T) {
	res, err := lisp.Run(`(count (filter (where :n != 2) [{:n 1} {:n 2} {:n 3}]))`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), res.Return)
}

func TestPmapPreservesInputOrder(t *testing.T) {
	res, err := lisp.Run(`(pmap (fn [x] (* x 10)) [1 2 3 4 5])`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	want := value.Vector([]value.Value{value.Int(10), value.Int(20), value.Int(30), value.Int(40), value.Int(50)})
	assert.Equal(t, want, res.Return)
}

// TestPmapMergesPrintsByInputIndexNotCompletionOrder is spec.md §5/§8
// property 5: tool-call/print logs merge by input index, not by which
// worker happened to finish first.
func TestPmapMergesPrintsByInputIndexNotCompletionOrder(t *testing.T) {
	src := `(pmap (fn [x] (do (println x) x)) [5 4 3 2 1])`
	res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	want := value.Vector([]value.Value{value.Int(5), value.Int(4), value.Int(3), value.Int(2), value.Int(1)})
	assert.Equal(t, want, res.Return)
	require.Len(t, res.Prints, 5)
	assert.Equal(t, []string{"5\n", "4\n", "3\n", "2\n", "1\n"}, res.Prints)
}

// TestPmapFirstSentinelWins is spec.md §5: the first worker returning a
// sentinel propagates it and the remaining results are discarded.
func TestPmapFirstSentinelWins(t *testing.T) {
	src := `(pmap (fn [x] (if (= x 3) (fail {:reason :bad :message "three"}) x)) [1 2 3 4 5])`
	res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, "fail", res.Sentinel)
	assert.Equal(t, "bad", res.FailReason)
	assert.Equal(t, "three", res.FailMessage)
}

func TestLoopRecur(t *testing.T) {
	src := `(loop [i 0 acc 0] (if (> i 4) acc (recur (inc i) (+ acc i))))`
	res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(10), res.Return)
}

func TestLoopRecurCountsAgainstIterationLimit(t *testing.T) {
	src := `(loop [i 0] (recur (inc i)))`
	_, err := lisp.Run(src, lisp.RunOpts{Eval: lisp.Opts{LoopLimit: 50}})
	require.Error(t, err)
}

func TestRecurOutsideLoopIsAnalysisError(t *testing.T) {
	_, err := lisp.Run(`(recur 1)`, lisp.RunOpts{Eval: defaultOpts()})
	require.Error(t, err)

	_, err = lisp.Run(`(loop [i 0] ((fn [] (recur 1))))`, lisp.RunOpts{Eval: defaultOpts()})
	require.Error(t, err, "recur must not cross a closure boundary")
}

func TestIncDecMinMaxModAbs(t *testing.T) {
	cases := map[string]value.Value{
		`(inc 1)`:       value.Int(2),
		`(dec 1.5)`:     value.Float(0.5),
		`(min 3 1 2)`:   value.Int(1),
		`(max 3 1 2.5)`: value.Int(3),
		`(mod 7 3)`:     value.Int(1),
		`(mod -7 3)`:    value.Int(2),
		`(abs -4)`:      value.Int(4),
	}
	for src, want := range cases {
		res, err := lisp.Run(src, lisp.RunOpts{Eval: defaultOpts()})
		require.NoError(t, err, src)
		assert.Equal(t, want, res.Return, src)
	}
}

func TestLoopLimitExceeded(t *testing.T) {
	src := `(defn loop-forever [n] (loop-forever (+ n 1))) (loop-forever 0)`
	_, err := lisp.Run(src, lisp.RunOpts{Eval: lisp.Opts{LoopLimit: 50}})
	require.Error(t, err)
}

// TestParsePrintRoundTrip is spec.md §8 property 1: for every value kind
// except closures and builtins, reading the canonical printed form back
// yields an equal value.
func TestParsePrintRoundTrip(t *testing.T) {
	vals := []value.Value{
		value.Nil,
		value.Bool(true),
		value.Int(-3),
		value.Float(2.5),
		value.String("a\"b\nc"),
		value.Keyword("k"),
		value.Vector([]value.Value{value.Int(1), value.String("x"), value.Keyword("y")}),
		value.Map(value.MapOf(value.Keyword("a"), value.Int(1), value.String("b"), value.Vector([]value.Value{value.Int(2)}))),
		value.Set(value.SetOf(value.Int(1), value.Keyword("two"))),
	}
	for _, v := range vals {
		res, err := lisp.Run("(quote "+value.Print(v)+")", lisp.RunOpts{Eval: defaultOpts()})
		require.NoError(t, err, value.Print(v))
		assert.True(t, value.Equal(v, res.Return), value.Print(v))
	}
}

// TestFlexibleKeyAccess is spec.md §8 property 6.
func TestFlexibleKeyAccess(t *testing.T) {
	res, err := lisp.Run(`(:k {"k" 1})`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), res.Return)

	res, err = lisp.Run(`(get {:k 1} "k")`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), res.Return)

	res, err = lisp.Run(`(= {:k 1} {"k" 1})`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), res.Return, "flex lookup must not make mixed-key maps equal")
}

func product(price int64) value.Value {
	return value.Map(value.MapOf(value.Keyword("price"), value.Int(price)))
}

// TestScenarioCountAndFilter is spec.md §8 S1.
func TestScenarioCountAndFilter(t *testing.T) {
	ctx := value.MapOf(value.Keyword("products"), value.Vector([]value.Value{
		product(100), product(600), product(700),
	}))
	src := `(->> ctx/products (filter (where :price > 500)) count)`
	res, err := lisp.Run(src, lisp.RunOpts{Ctx: ctx, Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), res.Return)
	assert.Equal(t, 0, res.MemoryDelta.Len())
}

// TestScenarioMemoryAccumulation is spec.md §8 S2: memory carried from one
// program execution's memory contract into the next's starting memory.
func TestScenarioMemoryAccumulation(t *testing.T) {
	order := func(status string) value.Value {
		return value.Map(value.MapOf(value.Keyword("status"), value.String(status)))
	}
	orders := make([]value.Value, 0, 20)
	for i := 0; i < 5; i++ {
		orders = append(orders, order("delivered"))
	}
	for i := 0; i < 15; i++ {
		orders = append(orders, order("pending"))
	}
	ctx := value.MapOf(value.Keyword("orders"), value.Vector(orders))

	turn1 := `{:delivered (count (filter (where :status = "delivered") ctx/orders))}`
	res1, err := lisp.Run(turn1, lisp.RunOpts{Ctx: ctx, Eval: defaultOpts()})
	require.NoError(t, err)
	delivered, ok := res1.Memory.GetFlex(value.Keyword("delivered"))
	require.True(t, ok)
	assert.Equal(t, value.Int(5), delivered)

	precision := 2
	turn2 := `(return (/ memory/delivered (count ctx/orders)))`
	res2, err := lisp.Run(turn2, lisp.RunOpts{Ctx: ctx, Memory: res1.Memory, FloatPrecision: &precision, Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Float(0.25), res2.Return)
}

// TestScenarioResultExtraction is spec.md §8 S3.
func TestScenarioResultExtraction(t *testing.T) {
	res, err := lisp.Run(`{:result 42 :note "ok"}`, lisp.RunOpts{Eval: defaultOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), res.Return)
	note, ok := res.MemoryDelta.GetFlex(value.Keyword("note"))
	require.True(t, ok)
	assert.Equal(t, value.String("ok"), note)
}
