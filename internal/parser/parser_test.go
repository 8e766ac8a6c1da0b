package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vvm/internal/ast"
)

func TestLetAndVarDecls(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"let with literal", "let x = 5", false},
		{"var with literal", "var x = 5", false},
		{"typed let", "let x: Int64 = 5", false},
		{"missing value", "let x =", true},
		{"let without equals", "let x 5", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, mod.Stmts, 1)
			decl, ok := mod.Stmts[0].(*ast.LetDecl)
			require.True(t, ok)
			assert.Equal(t, "x", decl.Name)
		})
	}
}

func TestBinaryPrecedence(t *testing.T) {
	mod, err := Parse("let x = 1 + 2 * 3")
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	bin, ok := decl.Value.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
	right, ok := bin.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", right.Op)
}

func TestLogicalOperatorsBindLooserThanComparisons(t *testing.T) {
	mod, err := Parse("let x = 1 < 2 && 3 > 4")
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	lb, ok := decl.Value.(*ast.LogicalBinary)
	require.True(t, ok)
	assert.Equal(t, "&&", lb.Op)
	_, ok = lb.Left.(*ast.Binary)
	assert.True(t, ok)
	_, ok = lb.Right.(*ast.Binary)
	assert.True(t, ok)
}

func TestLiteralSuffix(t *testing.T) {
	mod, err := Parse("let x = 3d")
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	lit, ok := decl.Value.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, "d", lit.Suffix)
	assert.Equal(t, int64(3), lit.Int)
}

func TestArrayLiteral(t *testing.T) {
	mod, err := Parse(`let xs = [1, 2, 3]`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	arr, ok := decl.Value.(*ast.ArrayLit)
	require.True(t, ok)
	assert.Len(t, arr.Elements, 3)
}

func TestMemberAndIndex(t *testing.T) {
	mod, err := Parse(`let y = t.col[0]`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	idx, ok := decl.Value.(*ast.Index)
	require.True(t, ok)
	mem, ok := idx.Target.(*ast.Member)
	require.True(t, ok)
	assert.Equal(t, "col", mem.Name)
}

func TestFnDeclExpressionBody(t *testing.T) {
	mod, err := Parse("fn add(a: Int64, b: Int64) Int64 = a + b")
	require.NoError(t, err)
	fn, ok := mod.Stmts[0].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	require.NotNil(t, fn.ReturnType)
	assert.Equal(t, "Int64", fn.ReturnType.Name)
	require.NotNil(t, fn.BodyExpr)
}

func TestFnDeclBlockBody(t *testing.T) {
	mod, err := Parse(`
fn inc(a: Int64) Int64:
  return a + 1
end
`)
	require.NoError(t, err)
	fn, ok := mod.Stmts[0].(*ast.FnDecl)
	require.True(t, ok)
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Stmts, 1)
	_, ok = fn.Body.Stmts[0].(*ast.Return)
	assert.True(t, ok)
}

func TestGenericFnTemplateParams(t *testing.T) {
	mod, err := Parse("fn first<T>(xs: [T]) T = xs[0]")
	require.NoError(t, err)
	fn, ok := mod.Stmts[0].(*ast.FnDecl)
	require.True(t, ok)
	require.Len(t, fn.TemplateParams, 1)
	assert.Equal(t, "T", fn.TemplateParams[0].Name)
	require.NotNil(t, fn.Params[0].Type.ArrayOf)
}

func TestMacroMarksParamsAsMacroParameter(t *testing.T) {
	mod, err := Parse("macro fn dbg(expr) = expr")
	require.NoError(t, err)
	fn, ok := mod.Stmts[0].(*ast.FnDecl)
	require.True(t, ok)
	require.Len(t, fn.Params, 1)
	assert.True(t, fn.Params[0].MacroParameter)
}

func TestDataDeclFields(t *testing.T) {
	mod, err := Parse(`
data Person:
  name: String,
  age: Int64
end
`)
	require.NoError(t, err)
	dd, ok := mod.Stmts[0].(*ast.DataDecl)
	require.True(t, ok)
	require.Len(t, dd.Fields, 2)
	assert.Equal(t, "name", dd.Fields[0].Name)
	assert.Equal(t, "Int64", dd.Fields[1].Type.Name)
}

func TestDataDeclTemplate(t *testing.T) {
	mod, err := Parse(`
data Box{T}:
  value: T
end
`)
	require.NoError(t, err)
	dd, ok := mod.Stmts[0].(*ast.DataDecl)
	require.True(t, ok)
	require.Len(t, dd.TemplateParams, 1)
	assert.Equal(t, "T", dd.TemplateParams[0].Name)
}

func TestDataDeclAlias(t *testing.T) {
	mod, err := Parse("data Meters = Float64")
	require.NoError(t, err)
	dd, ok := mod.Stmts[0].(*ast.DataDecl)
	require.True(t, ok)
	require.NotNil(t, dd.Alias)
	assert.Equal(t, "Float64", dd.Alias.Name)
}

func TestIfElifElse(t *testing.T) {
	mod, err := Parse(`
let r = if x > 0:
  1
elif x < 0:
  -1
else:
  0
end
`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	ifExpr, ok := decl.Value.(*ast.If)
	require.True(t, ok)
	require.NotNil(t, ifExpr.ElseIf)
	require.NotNil(t, ifExpr.ElseIf.Else)
}

func TestWhileLoop(t *testing.T) {
	mod, err := Parse(`
while x < 10:
  x += 1
end
`)
	require.NoError(t, err)
	w, ok := mod.Stmts[0].(*ast.While)
	require.True(t, ok)
	require.Len(t, w.Body.Stmts, 1)
	assign, ok := w.Body.Stmts[0].(*ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "+=", assign.Op)
}

func TestQueryExpression(t *testing.T) {
	mod, err := Parse(`let q = from t select total: sum(x) by grp where x > 0`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	q, ok := decl.Value.(*ast.Query)
	require.True(t, ok)
	require.Len(t, q.Cols, 1)
	assert.Equal(t, "total", q.Cols[0].Name)
	require.Len(t, q.By, 1)
	require.NotNil(t, q.Where)
}

func TestSortExpression(t *testing.T) {
	mod, err := Parse(`let s = sort t by x, y`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	s, ok := decl.Value.(*ast.Sort)
	require.True(t, ok)
	assert.Len(t, s.By, 2)
}

func TestAsofJoinExpression(t *testing.T) {
	mod, err := Parse(`let j = join quotes, trades on sym asof time, time strict backward within 5`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	j, ok := decl.Value.(*ast.Join)
	require.True(t, ok)
	require.Len(t, j.On, 1)
	require.NotNil(t, j.AsofLeft)
	require.NotNil(t, j.AsofRight)
	assert.True(t, j.Strict)
	assert.Equal(t, ast.DirBackward, j.Direction)
	require.NotNil(t, j.Within)
}

func TestTemplateInstantiationCall(t *testing.T) {
	mod, err := Parse(`let p = Box{Int64}(5)`)
	require.NoError(t, err)
	decl := mod.Stmts[0].(*ast.LetDecl)
	call, ok := decl.Value.(*ast.Call)
	require.True(t, ok)
	require.Len(t, call.TemplateArgs, 1)
	require.Len(t, call.Args, 1)
}

func TestUnexpectedTokenProducesParseError(t *testing.T) {
	_, err := Parse("let x = )")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}
