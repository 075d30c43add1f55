package migrate

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

func migrationsFS(dir string) (fs.FS, error) {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations %s: %w", dir, err)
	}
	return sub, nil
}
