// admin 是运维辅助工具：校验 LaTeX 简历模板并安装到模板目录。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/AmyLu0828/the-resume-hub/internal/template"
)

func main() {
	var (
		file        = flag.String("file", "", "模板文件路径（必填）")
		name        = flag.String("name", "", "安装名（可选，默认取文件名）")
		templateDir = flag.String("dir", "", "模板目录（可选，默认读 TEMPLATE_DIR）")
		checkOnly   = flag.Bool("check", false, "只校验不安装")
	)
	flag.Parse()

	if strings.TrimSpace(*file) == "" {
		flag.Usage()
		log.Fatal("missing required -file")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read template: %v", err)
	}

	installName := strings.TrimSpace(*name)
	if installName == "" {
		base := filepath.Base(*file)
		installName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	parts, err := template.Parse(installName, string(content))
	if err != nil {
		log.Fatalf("invalid template: %v", err)
	}
	fmt.Printf("template %q ok: preamble %d bytes, header %d bytes, sections %d bytes\n",
		installName, len(parts.Preamble), len(parts.Header), len(parts.Sections))

	if *checkOnly {
		return
	}

	dir := strings.TrimSpace(*templateDir)
	if dir == "" {
		dir = os.Getenv("TEMPLATE_DIR")
	}
	if dir == "" {
		log.Fatal("template dir not set, pass -dir or TEMPLATE_DIR")
	}

	dest := filepath.Join(dir, installName+".tex")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("create template dir: %v", err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		log.Fatalf("install template: %v", err)
	}
	fmt.Printf("installed %s\n", dest)
}
