// @title Image Pipeline API
// @version 1.0
// @description Fetches remote images and stores resized JPEG/PNG/GIF and WebP derivatives.
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"image-pipeline-server/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 image-pipeline-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "image-pipeline-server failed: %v\n", err)
		os.Exit(1)
	}
}
