package sandbox

// Preamble is the fixed prelude internal/harness splices ahead of the
// context body and driver: it declares the results mapping, the
// call-trace log, and the safe_call wrapper that records a returned
// value or a thrown error/elapsed-time pair and never lets an exception
// escape the driver loop.
const Preamble = `var __results = {};
var __trace = [];
function safe_call(f, args, key) {
  var start = Date.now();
  try {
    var v = f.apply(null, args);
    __results[key] = v;
    __trace.push({ call: key, args: args, result: v, elapsedMs: Date.now() - start });
  } catch (e) {
    __trace.push({ call: key, args: args, error: String(e), elapsedMs: Date.now() - start });
  }
}
var console = { log: function(){}, warn: function(){}, error: function(){} };
var require = function(name) { return name; };
`
