// internal/service/order/infrastructure/adapter/cel_guard.go
package adapter

import (
	"fmt"

	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"github.com/google/cel-go/cel"
)

// CELGuardCompiler 把门店配置的规则编译为 domain.TransitionGuard。
// 表达式可以使用 from、to、note、order_type、grand_total、line_count，结果必须是 bool。
type CELGuardCompiler struct {
	env *cel.Env
}

var _ port.GuardCompiler = (*CELGuardCompiler)(nil)

func NewCELGuardCompiler() (*CELGuardCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("from", cel.StringType),
		cel.Variable("to", cel.StringType),
		cel.Variable("note", cel.StringType),
		cel.Variable("order_type", cel.StringType),
		cel.Variable("grand_total", cel.DoubleType),
		cel.Variable("line_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &CELGuardCompiler{env: env}, nil
}

// Compile 编译全部规则，任意一条非法则整体失败
func (c *CELGuardCompiler) Compile(rules []domain.GuardRule) ([]domain.TransitionGuard, error) {
	guards := make([]domain.TransitionGuard, 0, len(rules))
	for _, rule := range rules {
		ast, iss := c.env.Compile(rule.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("guard %q: %w", rule.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("guard %q: expression must return bool, got %s", rule.Name, ast.OutputType())
		}
		prg, err := c.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("guard %q: %w", rule.Name, err)
		}
		guards = append(guards, &celGuard{rule: rule, prg: prg})
	}
	return guards, nil
}

type celGuard struct {
	rule domain.GuardRule
	prg  cel.Program
}

// Check 表达式为 false 或求值出错时都拒绝流转
func (g *celGuard) Check(order domain.Order, target domain.Status, note string) error {
	out, _, err := g.prg.Eval(map[string]interface{}{
		"from":        string(order.Status),
		"to":          string(target),
		"note":        note,
		"order_type":  string(order.Type),
		"grand_total": order.Totals.GrandTotal.InexactFloat64(),
		"line_count":  int64(len(order.Lines)),
	})
	if err != nil {
		return g.reject(order, target, fmt.Sprintf("rule %s could not be evaluated: %v", g.rule.Name, err))
	}
	if allowed, ok := out.Value().(bool); ok && allowed {
		return nil
	}
	reason := g.rule.Message
	if reason == "" {
		reason = "blocked by rule " + g.rule.Name
	}
	return g.reject(order, target, reason)
}

func (g *celGuard) reject(order domain.Order, target domain.Status, reason string) error {
	return &domain.TransitionError{
		OrderID: order.ID,
		From:    order.Status,
		To:      target,
		Reason:  reason,
		Kind:    domain.ErrInvalidTransition,
	}
}
