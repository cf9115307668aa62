package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/packages"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pkgutil"
	"github.com/BarrensZeppelin/pta/ssair"
	"github.com/BarrensZeppelin/pta/taint"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	dir        = flag.String("dir", "", "alternative directory to run the go build tool in")
	policy     = flag.String("cs", "ci", "context sensitivity: ci, k-call, k-obj or k-type")
	taintFile  = flag.String("taint", "", "taint rules in YAML `file`")
	compareCHA = flag.Bool("cha", false, "report the size of the CHA call graph for comparison")
	verbose    = flag.Bool("v", false, "print debug messages")
	trace      = flag.Bool("trace", false, "print every work list entry")
)

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *trace {
		log.SetLevel(log.TraceLevel)
	}

	if flag.NArg() == 0 {
		log.Fatal("Specify a package query on the command line")
	}

	selector, err := pta.ParseSelector(*policy)
	if err != nil {
		log.Fatal(err)
	}

	var rules *taint.Config
	if *taintFile != "" {
		if rules, err = taint.Load(*taintFile); err != nil {
			log.Fatal(err)
		}
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Fatal("Failed to close", f)
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode:  pkgutil.LoadMode,
		Tests: false,
		Dir:   *dir,
	}, flag.Args()...)
	if err != nil {
		log.Fatalf("Loading packages failed: %v", err)
	}
	log.Infof("Loaded %d packages", len(pkgs))

	prog := pkgutil.BuildSSA(pkgs)
	log.Info("Built packages")

	lowered, err := ssair.Lower(prog)
	if err != nil {
		log.Fatal(err)
	}

	res, err := lowered.Analyze(pta.AnalysisConfig{
		Selector: selector,
		Taint:    rules,
	})
	if err != nil {
		log.Fatal(err)
	}

	cg := lowered.CallGraph(res)
	stats := res.Stats()
	log.Infof("%d reachable functions", len(lowered.ReachableFunctions(res)))
	log.Infof("%d call edges, %d pointers, %d objects", countEdges(cg), stats.Pointers, stats.Objects)

	if *compareCHA {
		log.Infof("CHA call graph: %d edges", countEdges(cha.CallGraph(prog)))
	}

	for _, flow := range res.TaintFlows() {
		fmt.Printf("%s %s -> %s %s (argument %d)\n",
			color.RedString("source"), position(lowered, flow.Source),
			color.YellowString("sink"), position(lowered, flow.Sink),
			flow.Index)
	}
}

func position(p *ssair.Program, site *ir.Invoke) string {
	if call := p.CallSite(site); call != nil {
		return p.SSA.Fset.Position(call.Pos()).String()
	}
	return site.String()
}

func countEdges(cg *callgraph.Graph) int {
	n := 0
	callgraph.GraphVisitEdges(cg, func(*callgraph.Edge) error {
		n++
		return nil
	})
	return n
}
