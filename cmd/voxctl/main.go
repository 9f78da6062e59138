package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/voxmesh/internal/app"
	"github.com/annel0/voxmesh/internal/config"
	"github.com/annel0/voxmesh/internal/generator"
	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (or VOXMESH_CONFIG)")
		command    = flag.String("cmd", "list", "Command: generate, list, info, render, history, gc, serve")
		imageID    = flag.String("id", "", "Image ID for info/render")
		seed       = flag.Int64("seed", 1, "Terrain seed for generate")
		size       = flag.Int("size", 64, "Terrain edge in voxels for generate")
	)
	flag.Parse()

	if err := logging.InitDefaultLogger("voxctl"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	logging.Default().SetLevel(cfg.Logging.GetLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.NewEngine(ctx, cfg, logging.Default())
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации движка: %v", err)
	}
	defer engine.Close()

	switch *command {
	case "generate":
		err = generate(ctx, engine, *seed, *size)
	case "list":
		err = list(ctx, engine)
	case "info":
		err = info(ctx, engine, *imageID)
	case "render":
		err = renderImage(ctx, engine, *imageID)
	case "history":
		err = historyDemo(engine)
	case "gc":
		var removed int
		removed, err = engine.Images.CollectGarbage(ctx)
		if err == nil {
			fmt.Printf("🧹 Removed %d unreferenced blocks\n", removed)
		}
	case "serve":
		err = serve(ctx, engine)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: generate, list, info, render, history, gc, serve")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// generate создаёт документ с процедурным ландшафтом и сохраняет его
func generate(ctx context.Context, engine *app.Engine, seed int64, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid size %d", size)
	}
	img := engine.NewImage()
	defer img.Release()

	gen := generator.NewTerrainGenerator(seed, logging.GetComponentLogger("generator"))
	area := vec.NewBox(vec.Vec3{}, vec.Vec3{X: size - 1, Y: size - 1, Z: gen.MaxHeight - 1})
	if err := gen.Generate(ctx, img.Active().Mesh(), area); err != nil {
		return err
	}
	img.Push()
	if err := engine.Images.SaveImage(ctx, img); err != nil {
		return err
	}

	stats := engine.Store.Stats()
	fmt.Printf("🌍 Generated image %s\n", img.ID())
	fmt.Printf("   blocks: %d, voxels: %d, live data: %d\n",
		img.Active().Mesh().BlockCount(), img.Active().Mesh().VoxelCount(), stats.LiveData)
	return nil
}

// list выводит идентификаторы сохранённых документов
func list(ctx context.Context, engine *app.Engine) error {
	ids, err := engine.Images.ListImages(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("\n📊 Total images: %d\n", len(ids))
	return nil
}

// info выводит манифест документа
func info(ctx context.Context, engine *app.Engine, id string) error {
	img, err := engine.LoadImage(ctx, id)
	if err != nil {
		return err
	}
	defer img.Release()

	fmt.Printf("🗂  Image %s (%dx%d)\n", img.ID(), img.ExportWidth, img.ExportHeight)
	for _, l := range img.Layers() {
		marker := " "
		if l == img.Active() {
			marker = "*"
		}
		box := l.Mesh().Box(true)
		fmt.Printf(" %s %-24s visible=%-5v blocks=%-5d voxels=%-8d box=%v..%v\n",
			marker, l.Name(), l.Visible(), l.Mesh().BlockCount(), l.Mesh().VoxelCount(), box.Min, box.Max)
	}
	return nil
}

// renderImage строит буферы вершин и печатает сводку
func renderImage(ctx context.Context, engine *app.Engine, id string) error {
	img, err := engine.LoadImage(ctx, id)
	if err != nil {
		return err
	}
	defer img.Release()

	buffers, err := engine.Render(img)
	if err != nil {
		return err
	}
	vertices := 0
	for _, b := range buffers {
		vertices += len(b.Vertices)
	}
	fmt.Printf("🎨 %d blocks, %d vertices, %d quads (effects: %s)\n",
		len(buffers), vertices, vertices/4, engine.Effects)
	return nil
}

// historyDemo показывает работу undo/redo на небольшом документе
func historyDemo(engine *app.Engine) error {
	img := engine.NewImage()
	defer img.Release()
	mesh := img.Active().Mesh()

	brush := voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeSphere, Color: voxel.HexColor(0x3080ffff)}
	for i := 0; i < 3; i++ {
		origin := vec.Vec3{X: i * 12}
		if err := mesh.Op(brush, vec.NewBox(origin, origin.Add(vec.Vec3{X: 9, Y: 9, Z: 9}))); err != nil {
			return err
		}
		img.Push()
		fmt.Printf("✏️  stroke %d: voxels=%d\n", i+1, mesh.VoxelCount())
	}

	for img.Undo() {
		fmt.Printf("↩️  undo: voxels=%d\n", img.Active().Mesh().VoxelCount())
	}
	for img.Redo() {
		fmt.Printf("↪️  redo: voxels=%d\n", img.Active().Mesh().VoxelCount())
	}
	h := img.History()
	fmt.Printf("📜 snapshots=%d cursor=%d max=%d\n", h.Len(), h.Cursor(), h.MaxDepth())
	return nil
}

// serve держит процесс с эндпоинтом метрик до сигнала завершения
func serve(ctx context.Context, engine *app.Engine) error {
	if !engine.Config.Metrics.Enabled {
		return fmt.Errorf("metrics are disabled in config")
	}
	logging.Info("📡 Ожидание сигналов завершения (uptime %s)...", engine.Process.GetUptime())
	<-ctx.Done()
	logging.Info("📡 Завершение работы, uptime %s", engine.Process.GetUptime())
	return nil
}
