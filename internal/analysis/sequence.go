package analysis

import (
	"context"
	"iter"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/temirov/codereview/internal/types"
)

// task produces the result for one input position.
type task func(ctx context.Context) types.AnalysisResult

// Results lazily analyzes records and yields one result per record in input
// order. Work starts when iteration starts; stopping the iteration or
// cancelling ctx stops the batch.
func (analyzer *Analyzer) Results(ctx context.Context, records []types.FileRecord) iter.Seq[types.AnalysisResult] {
	tasks := make([]task, 0, len(records))
	for _, record := range records {
		tasks = append(tasks, func(taskContext context.Context) types.AnalysisResult {
			return analyzer.AnalyzeFile(taskContext, record)
		})
	}
	return analyzer.run(ctx, tasks)
}

// ResultsForPaths reads and analyzes each path as it is reached. Relative
// paths are resolved against root and reported as given; a file that cannot
// be read yields an error result instead of stopping the batch.
func (analyzer *Analyzer) ResultsForPaths(ctx context.Context, root string, paths []string) iter.Seq[types.AnalysisResult] {
	tasks := make([]task, 0, len(paths))
	for _, currentPath := range paths {
		tasks = append(tasks, func(taskContext context.Context) types.AnalysisResult {
			record, readError := ReadFileRecord(root, currentPath)
			if readError != nil {
				return analyzer.failure(types.AnalysisResult{CodeFile: currentPath}, types.OutcomeReadFailure, readError)
			}
			return analyzer.AnalyzeFile(taskContext, record)
		})
	}
	return analyzer.run(ctx, tasks)
}

// ReadFileRecord reads path, resolved against root when relative, into a record keyed by path.
func ReadFileRecord(root string, path string) (types.FileRecord, error) {
	absolutePath := path
	if root != "" && !filepath.IsAbs(path) {
		absolutePath = filepath.Join(root, filepath.FromSlash(path))
	}
	content, readError := os.ReadFile(absolutePath)
	if readError != nil {
		return types.FileRecord{}, readError
	}
	return types.FileRecord{Path: path, Content: string(content)}, nil
}

func (analyzer *Analyzer) run(ctx context.Context, tasks []task) iter.Seq[types.AnalysisResult] {
	if analyzer.settings.Workers <= 1 {
		return func(yield func(types.AnalysisResult) bool) {
			for _, currentTask := range tasks {
				if ctx.Err() != nil {
					return
				}
				if !yield(currentTask(ctx)) {
					return
				}
			}
		}
	}
	return func(yield func(types.AnalysisResult) bool) {
		batchContext, cancel := context.WithCancel(ctx)
		defer cancel()

		slots := make([]chan types.AnalysisResult, len(tasks))
		for index := range slots {
			slots[index] = make(chan types.AnalysisResult, 1)
		}

		group, groupContext := errgroup.WithContext(batchContext)
		group.SetLimit(analyzer.settings.Workers)
		launched := make(chan struct{})
		go func() {
			defer close(launched)
			for index, currentTask := range tasks {
				if groupContext.Err() != nil {
					return
				}
				slot := slots[index]
				group.Go(func() error {
					slot <- currentTask(groupContext)
					return nil
				})
			}
		}()
		// No task outlives the iteration.
		defer func() {
			cancel()
			<-launched
			_ = group.Wait()
		}()

		for _, slot := range slots {
			select {
			case result := <-slot:
				if !yield(result) {
					return
				}
			case <-batchContext.Done():
				return
			}
		}
	}
}
