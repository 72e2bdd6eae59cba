package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"github.com/bitfantasy/nimo-erp/internal/erp/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLocator struct{}

func (fakeLocator) FileURL(_ context.Context, fileID string) (string, error) {
	if fileID == "broken" {
		return "", errors.New("no such object")
	}
	return "https://files.test/" + fileID, nil
}

func setupServices(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return db, NewServices(repos, Options{Locator: fakeLocator{}})
}

// seedPipeline 项目 + 四个阶段 + IDC 下的一张图纸
func seedPipeline(t *testing.T, db *gorm.DB, progress int) {
	t.Helper()
	testutil.SeedProject(t, db, "p1", "PRJ-001", progress)
	testutil.SeedStage(t, db, "s-idc", "p1", entity.StageIDC, 25, "A")
	testutil.SeedStage(t, db, "s-ifr", "p1", entity.StageIFR, 25, "B")
	testutil.SeedStage(t, db, "s-ifa", "p1", entity.StageIFA, 25, "")
	testutil.SeedStage(t, db, "s-afc", "p1", entity.StageAFC, 25, "")
	testutil.SeedDrawing(t, db, "d1", "p1", "s-idc")
}

func loadStage(t *testing.T, db *gorm.DB, id string) entity.Stage {
	t.Helper()
	var s entity.Stage
	require.NoError(t, db.First(&s, "id = ?", id).Error)
	return s
}

func loadProject(t *testing.T, db *gorm.DB, id string) entity.Project {
	t.Helper()
	var p entity.Project
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p
}

func complete(action string) UpdateLogInput {
	in := UpdateLogInput{Status: entity.LogStatusCompleted, ActionTaken: &action}
	if action == entity.ActionRejected {
		reason := "返工"
		in.Reason = &reason
	}
	return in
}

func TestDocumentationApprovalCompletesStage(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	testutil.SeedLog(t, db, "l1", "d1", "s-idc", entity.StepDocumentation, entity.LogStatusInProgress, "f1", "f2")

	log, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionApproved))
	require.NoError(t, err)
	assert.Equal(t, entity.LogStatusCompleted, log.Status)
	assert.Equal(t, entity.ActionApproved, log.Action())
	assert.NotNil(t, log.CompletedAt)

	assert.Equal(t, entity.StageStatusCompleted, loadStage(t, db, "s-idc").Status)
	assert.Equal(t, entity.StageStatusPending, loadStage(t, db, "s-ifr").Status)
	project := loadProject(t, db, "p1")
	assert.Equal(t, 25, project.Progress)
	assert.Equal(t, entity.ProjectStatusWorking, project.Status)

	files, err := svc.Drawing.GetFinalFilesByProjectID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	ids := []string{files[0].FileID, files[1].FileID}
	assert.ElementsMatch(t, []string{"f1", "f2"}, ids)
	for _, f := range files {
		assert.Equal(t, entity.StageIDC, f.StageName)
		assert.Equal(t, "d1", f.DrawingID)
		assert.Equal(t, "l1", f.LogID)
		assert.Equal(t, "https://files.test/"+f.FileID, f.URL)
	}
}

func TestFinalFilesAreDeduplicated(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	testutil.SeedDrawing(t, db, "d-ifr", "p1", "s-ifr")
	testutil.SeedLog(t, db, "l1", "d1", "s-idc", entity.StepDocumentation, entity.LogStatusInProgress, "f1", "broken")
	testutil.SeedLog(t, db, "l2", "d-ifr", "s-ifr", entity.StepDocumentation, entity.LogStatusInProgress, "f1")

	_, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionApproved))
	require.NoError(t, err)

	// 同一图纸重复的文件ID只保留一份
	repos := repository.NewRepositories(db)
	added, err := addFinalFiles(ctx, repos, "d1", "l1", entity.FileIDs{"f1", "f3", "f3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f3"}, added)

	_, err = svc.StageLog.UpdateDrawingLog(ctx, "l2", complete(entity.ActionApproved))
	require.NoError(t, err)

	files, err := svc.Drawing.GetFinalFilesByProjectID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, files, 4)
	for _, f := range files {
		if f.FileID == "broken" {
			assert.Empty(t, f.URL)
		} else {
			assert.NotEmpty(t, f.URL)
		}
	}
	assert.Equal(t, 50, loadProject(t, db, "p1").Progress)
}

func TestAFCApprovalCompletesProject(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	testutil.SeedProject(t, db, "p1", "PRJ-001", 75)
	testutil.SeedStage(t, db, "s-afc", "p1", entity.StageAFC, 25, "C")
	testutil.SeedDrawing(t, db, "d1", "p1", "s-afc")
	testutil.SeedLog(t, db, "l1", "d1", "s-afc", entity.StepDocumentation, entity.LogStatusInProgress)

	_, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionApproved))
	require.NoError(t, err)

	project := loadProject(t, db, "p1")
	assert.Equal(t, 100, project.Progress)
	assert.Equal(t, entity.ProjectStatusCompleted, project.Status)
	assert.Equal(t, entity.StageStatusCompleted, loadStage(t, db, "s-afc").Status)
}

func TestProgressIsCapped(t *testing.T) {
	db, svc := setupServices(t)
	testutil.SeedProject(t, db, "p1", "PRJ-001", 90)
	testutil.SeedStage(t, db, "s-ifa", "p1", entity.StageIFA, 25, "")
	testutil.SeedDrawing(t, db, "d1", "p1", "s-ifa")
	testutil.SeedLog(t, db, "l1", "d1", "s-ifa", entity.StepDocumentation, entity.LogStatusInProgress)

	_, err := svc.StageLog.UpdateDrawingLog(context.Background(), "l1", complete(entity.ActionApproved))
	require.NoError(t, err)
	assert.Equal(t, entity.MaxProgress, loadProject(t, db, "p1").Progress)
}

func TestDocumentationRejectionBumpsStageRevision(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 10)
	testutil.SeedDrawing(t, db, "d2", "p1", "s-ifr")
	testutil.SeedLog(t, db, "l1", "d2", "s-ifr", entity.StepDocumentation, entity.LogStatusInProgress)
	testutil.SeedLog(t, db, "l2", "d2", "s-ifr", entity.StepDocumentation, entity.LogStatusInProgress)

	_, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionRejected))
	require.NoError(t, err)
	assert.Equal(t, "B1", loadStage(t, db, "s-ifr").Revision)

	_, err = svc.StageLog.UpdateDrawingLog(ctx, "l2", complete(entity.ActionRejected))
	require.NoError(t, err)
	stage := loadStage(t, db, "s-ifr")
	assert.Equal(t, "B2", stage.Revision)
	assert.Equal(t, entity.StageStatusPending, stage.Status)
	assert.Equal(t, 10, loadProject(t, db, "p1").Progress)

	var drawing entity.Drawing
	require.NoError(t, db.First(&drawing, "id = ?", "d2").Error)
	assert.Equal(t, "", drawing.Revision)
}

func TestConcurrentCompletionCreditsOnce(t *testing.T) {
	db, svc := setupServices(t)
	seedPipeline(t, db, 0)
	testutil.SeedLog(t, db, "l1", "d1", "s-idc", entity.StepDocumentation, entity.LogStatusInProgress)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StageLog.UpdateDrawingLog(context.Background(), "l1", complete(entity.ActionApproved))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 25, loadProject(t, db, "p1").Progress)
}

func TestSecondStageCompletionRollsBack(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	testutil.SeedDrawing(t, db, "d2", "p1", "s-idc")
	testutil.SeedLog(t, db, "l1", "d1", "s-idc", entity.StepDocumentation, entity.LogStatusInProgress)
	testutil.SeedLog(t, db, "l2", "d2", "s-idc", entity.StepDocumentation, entity.LogStatusInProgress, "f9")

	_, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionApproved))
	require.NoError(t, err)

	_, err = svc.StageLog.UpdateDrawingLog(ctx, "l2", complete(entity.ActionApproved))
	assert.ErrorIs(t, err, ErrConflict)

	// 日志更新随级联一起回滚
	var log entity.StageLog
	require.NoError(t, db.First(&log, "id = ?", "l2").Error)
	assert.Equal(t, entity.LogStatusInProgress, log.Status)
	assert.Nil(t, log.ActionTaken)
	assert.Equal(t, 25, loadProject(t, db, "p1").Progress)

	var finals int64
	db.Model(&entity.DrawingFinalFile{}).Where("drawing_id = ?", "d2").Count(&finals)
	assert.Zero(t, finals)
}

func TestCompletedLogIsImmutable(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	testutil.SeedLog(t, db, "l1", "d1", "s-idc", entity.StepChecking, entity.LogStatusInProgress)

	_, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionApproved))
	require.NoError(t, err)

	sent := true
	_, err = svc.StageLog.UpdateDrawingLog(ctx, "l1", UpdateLogInput{IsSent: &sent})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.StageLog.UpdateDrawingLog(ctx, "l1", complete(entity.ActionRejected))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.StageLog.UpdateDrawingLog(ctx, "missing", UpdateLogInput{IsSent: &sent})
	assert.ErrorIs(t, err, ErrNotFound)

	// 非文档环节不触发级联
	assert.Equal(t, entity.StageStatusPending, loadStage(t, db, "s-idc").Status)
	assert.Equal(t, 0, loadProject(t, db, "p1").Progress)
}

func TestAddDrawingStageLog(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)

	log, err := svc.StageLog.AddDrawingStageLog(ctx, "d1", AddLogInput{
		StepName:    entity.StepDrafting,
		Notes:       "初稿",
		Files:       []string{"f1", "f1", "f2"},
		ForwardedTo: "u2",
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s-idc", log.StageID)
	assert.Equal(t, entity.LogStatusNotStarted, log.Status)
	assert.Equal(t, entity.FileIDs{"f1", "f2"}, log.IncomingFiles)
	require.NotNil(t, log.ForwardedTo)
	assert.Equal(t, "u2", *log.ForwardedTo)

	_, err = svc.StageLog.AddDrawingStageLog(ctx, "missing", AddLogInput{StepName: entity.StepDrafting}, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.StageLog.AddDrawingStageLog(ctx, "d1", AddLogInput{StepName: "review"}, "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.StageLog.AddDrawingStageLog(ctx, "d1", AddLogInput{StepName: entity.StepDrafting, Status: entity.LogStatusCompleted}, "u1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetDrawingLogsIsStable(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	for _, step := range entity.StepOrder {
		_, err := svc.StageLog.AddDrawingStageLog(ctx, "d1", AddLogInput{StepName: step}, "u1")
		require.NoError(t, err)
	}

	first, err := svc.StageLog.GetDrawingLogs(ctx, "d1")
	require.NoError(t, err)
	second, err := svc.StageLog.GetDrawingLogs(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, first, len(entity.StepOrder))
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].CreatedAt.Before(first[i-1].CreatedAt))
	}

	_, err = svc.StageLog.GetDrawingLogs(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdvanceDrawingThroughPipeline(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)

	start := func(id string) {
		_, err := svc.StageLog.UpdateDrawingLog(ctx, id, UpdateLogInput{Status: entity.LogStatusInProgress})
		require.NoError(t, err)
	}

	log, err := svc.StageLog.AddDrawingStageLog(ctx, "d1", AddLogInput{StepName: entity.StepDrafting, Status: entity.LogStatusInProgress}, "drafter")
	require.NoError(t, err)

	// 绘图 → 校对
	res, err := svc.StageLog.AdvanceDrawing(ctx, log.ID, AdvanceInput{OutgoingFiles: []string{"f1"}, ForwardedTo: "checker"}, "drafter")
	require.NoError(t, err)
	assert.True(t, res.Completed.IsSent)
	require.NotNil(t, res.Next)
	assert.Equal(t, entity.StepChecking, res.Next.StepName)
	assert.Equal(t, entity.FileIDs{"f1"}, res.Next.IncomingFiles)
	assert.Nil(t, res.Cascade)

	// 校对驳回 → 回到绘图
	start(res.Next.ID)
	_, err = svc.StageLog.AdvanceDrawing(ctx, res.Next.ID, AdvanceInput{ActionTaken: entity.ActionRejected, ForwardedTo: "drafter"}, "checker")
	assert.ErrorIs(t, err, ErrValidation, "reason required")
	res, err = svc.StageLog.AdvanceDrawing(ctx, res.Next.ID, AdvanceInput{
		ActionTaken: entity.ActionRejected, Reason: "尺寸错误", OutgoingFiles: []string{"f1", "c1"}, ForwardedTo: "drafter",
	}, "checker")
	require.NoError(t, err)
	assert.Equal(t, entity.StepDrafting, res.Next.StepName)
	assert.Equal(t, entity.FileIDs{"f1", "c1"}, res.Next.IncomingFiles)

	// 重新绘图 → 校对 → 审批 → 文档
	start(res.Next.ID)
	res, err = svc.StageLog.AdvanceDrawing(ctx, res.Next.ID, AdvanceInput{OutgoingFiles: []string{"f2"}, ForwardedTo: "checker"}, "drafter")
	require.NoError(t, err)
	start(res.Next.ID)
	res, err = svc.StageLog.AdvanceDrawing(ctx, res.Next.ID, AdvanceInput{ActionTaken: entity.ActionApproved, OutgoingFiles: []string{"f2"}, ForwardedTo: "approver"}, "checker")
	require.NoError(t, err)
	assert.Equal(t, entity.StepApproval, res.Next.StepName)
	start(res.Next.ID)
	res, err = svc.StageLog.AdvanceDrawing(ctx, res.Next.ID, AdvanceInput{ActionTaken: entity.ActionApproved, OutgoingFiles: []string{"f2"}, ForwardedTo: "doc"}, "approver")
	require.NoError(t, err)
	assert.Equal(t, entity.StepDocumentation, res.Next.StepName)

	// 文档审批通过，阶段完成且没有下一条日志
	docLog := res.Next.ID
	start(docLog)
	res, err = svc.StageLog.AdvanceDrawing(ctx, docLog, AdvanceInput{ActionTaken: entity.ActionApproved}, "doc")
	require.NoError(t, err)
	assert.Nil(t, res.Next)
	assert.False(t, res.Completed.IsSent)
	require.NotNil(t, res.Cascade)
	assert.Equal(t, EffectStageCompleted, res.Cascade.Effect)
	assert.Equal(t, entity.StageIFR, res.Cascade.NextStage)
	assert.Equal(t, 25, res.Cascade.Progress)
	assert.Equal(t, []string{"f2"}, res.Cascade.FinalFiles)

	logs, err := svc.StageLog.GetDrawingLogs(ctx, "d1")
	require.NoError(t, err)
	steps := make([]string, 0, len(logs))
	for _, l := range logs {
		steps = append(steps, l.StepName)
		assert.Equal(t, entity.LogStatusCompleted, l.Status)
	}
	assert.Equal(t, []string{
		entity.StepDrafting, entity.StepChecking, entity.StepDrafting,
		entity.StepChecking, entity.StepApproval, entity.StepDocumentation,
	}, steps)
}

func TestAdvanceDrawingGuards(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	testutil.SeedLog(t, db, "l-new", "d1", "s-idc", entity.StepChecking, entity.LogStatusNotStarted)
	testutil.SeedLog(t, db, "l-open", "d1", "s-idc", entity.StepChecking, entity.LogStatusInProgress)
	testutil.SeedLog(t, db, "l-draft", "d1", "s-idc", entity.StepDrafting, entity.LogStatusInProgress)

	_, err := svc.StageLog.AdvanceDrawing(ctx, "l-new", AdvanceInput{ActionTaken: entity.ActionApproved, ForwardedTo: "u2"}, "u1")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.StageLog.AdvanceDrawing(ctx, "l-open", AdvanceInput{ActionTaken: entity.ActionApproved}, "u1")
	assert.ErrorIs(t, err, ErrValidation, "forwarded_to required")

	_, err = svc.StageLog.AdvanceDrawing(ctx, "l-open", AdvanceInput{ForwardedTo: "u2"}, "u1")
	assert.ErrorIs(t, err, ErrValidation, "action required")

	_, err = svc.StageLog.AdvanceDrawing(ctx, "l-draft", AdvanceInput{ActionTaken: entity.ActionApproved, ForwardedTo: "u2"}, "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.StageLog.AdvanceDrawing(ctx, "l-open", AdvanceInput{ActionTaken: entity.ActionApproved, ForwardedTo: "u2"}, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.StageLog.AdvanceDrawing(ctx, "missing", AdvanceInput{ForwardedTo: "u2"}, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	// 校验失败不留下任何写入
	logs, err := svc.StageLog.GetDrawingLogs(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestAssignedTasks(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)

	log, err := svc.StageLog.AddDrawingStageLog(ctx, "d1", AddLogInput{StepName: entity.StepChecking, ForwardedTo: "checker"}, "u1")
	require.NoError(t, err)

	task, err := svc.StageLog.GetUserAssignedTaskByLogID(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, "d1", task.DrawingID)
	assert.Equal(t, entity.StageIDC, task.StageName)
	assert.Equal(t, "PRJ-001", task.ProjectCode)
	assert.Equal(t, entity.StepChecking, task.StepName)

	tasks, err := svc.StageLog.ListAssignedTasks(ctx, "checker")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, log.ID, tasks[0].LogID)

	tasks, err = svc.StageLog.ListAssignedTasks(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = svc.StageLog.GetUserAssignedTaskByLogID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
