package control

import (
	"github.com/xfeldman/hyperstart/internal/hyper"
	"github.com/xfeldman/hyperstart/internal/ptyio"
)

func resizePty(e *hyper.Exec, rows, cols uint16) error {
	return ptyio.Resize(e.PtyMaster, rows, cols)
}
