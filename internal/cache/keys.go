package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func TaskStateKey(taskID uuid.UUID) string {
	return fmt.Sprintf("task:%s", taskID)
}
