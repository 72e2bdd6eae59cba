package service

import "github.com/bitfantasy/nimo-erp/internal/erp/entity"

// transitionKey (环节, 审核结论)，绘图环节结论为空
type transitionKey struct {
	step   string
	action string
}

// reviewRoutes 完成后下一条日志使用的环节；值为空表示本阶段流程结束
var reviewRoutes = map[transitionKey]string{
	{entity.StepDrafting, ""}:                         entity.StepChecking,
	{entity.StepChecking, entity.ActionApproved}:      entity.StepApproval,
	{entity.StepChecking, entity.ActionRejected}:      entity.StepDrafting,
	{entity.StepApproval, entity.ActionApproved}:      entity.StepDocumentation,
	{entity.StepApproval, entity.ActionRejected}:      entity.StepChecking,
	{entity.StepDocumentation, entity.ActionApproved}: "",
	{entity.StepDocumentation, entity.ActionRejected}: entity.StepDrafting,
}

// NextStep 返回下一环节；ok 为 false 表示组合不合法
func NextStep(step, action string) (next string, ok bool) {
	next, ok = reviewRoutes[transitionKey{step: step, action: action}]
	return next, ok
}
