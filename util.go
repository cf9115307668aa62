package pta

import (
	log "github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/pta/ir"
)

func checkArity(site *ir.Invoke, callee *ir.Method) {
	if len(site.Args) != len(callee.Params) {
		log.Panicf("Call %v passes %d arguments to %v, which takes %d",
			site, len(site.Args), callee, len(callee.Params))
	}
}
