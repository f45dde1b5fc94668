package dashboard

import "net/http"

func (d *Dashboard) serveFrontend(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(frontendHTML))
}

const frontendHTML = `<!DOCTYPE html>
<html lang="en"><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Fraud Watch</title>
<link href="https://fonts.googleapis.com/css2?family=JetBrains+Mono:wght@300;400;500;600;700&family=Space+Grotesk:wght@400;500;600;700&display=swap" rel="stylesheet">
<style>
:root{--bg:#08090d;--sf:#0f1118;--sf2:#161923;--sf3:#1e2230;--bd:#252a3a;--tx:#c8cdd8;--tx2:#8891a5;--tx3:#5a6278;--ac:#3b82f6;--gn:#10b981;--rd:#ef4444;--or:#f59e0b;--pr:#a855f7;--go:#eab308}
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:'JetBrains Mono',monospace;background:var(--bg);color:var(--tx);min-height:100vh}
.app{max-width:1440px;margin:0 auto;padding:20px 24px}
.hdr{display:flex;justify-content:space-between;align-items:center;padding:16px 0;border-bottom:1px solid var(--bd);margin-bottom:24px;gap:16px}
.hdr h1{font-family:'Space Grotesk',sans-serif;font-size:22px;font-weight:700;background:linear-gradient(135deg,var(--ac),var(--pr));-webkit-background-clip:text;-webkit-text-fill-color:transparent}
.sel{display:flex;gap:8px;flex:1;max-width:640px}
.sel input{flex:1;padding:10px 12px;background:var(--sf2);border:1px solid var(--bd);border-radius:8px;color:var(--tx);font-family:inherit;font-size:12px;outline:0}
.nav{display:flex;gap:4px;margin-bottom:24px;background:var(--sf);border-radius:10px;padding:4px;border:1px solid var(--bd)}
.nav button{font-family:inherit;font-size:11px;padding:9px 18px;border:none;background:0;color:var(--tx2);cursor:pointer;border-radius:8px}
.nav button.on{background:var(--ac);color:#fff}
.sts{display:grid;grid-template-columns:repeat(auto-fit,minmax(130px,1fr));gap:12px;margin-bottom:24px}
.st{background:var(--sf);border:1px solid var(--bd);border-radius:10px;padding:15px 16px}
.st .v{font-size:24px;font-weight:700}.st .v.r{color:var(--rd)}.st .v.o{color:var(--or)}.st .v.g{color:var(--gn)}.st .v.b{color:var(--ac)}
.st .l{font-size:9px;color:var(--tx3);text-transform:uppercase;letter-spacing:.8px;margin-top:5px}
.pn{background:var(--sf);border:1px solid var(--bd);border-radius:12px;margin-bottom:18px;overflow:hidden}
.pn-h{display:flex;justify-content:space-between;align-items:center;padding:13px 18px;border-bottom:1px solid var(--bd);background:var(--sf2)}
.pn-h h2{font-family:'Space Grotesk',sans-serif;font-size:13px;font-weight:600}
table{width:100%;border-collapse:collapse}
th{text-align:left;font-size:9px;color:var(--tx3);text-transform:uppercase;letter-spacing:.8px;padding:10px 14px;border-bottom:1px solid var(--bd)}
td{padding:10px 14px;border-bottom:1px solid rgba(37,42,58,.4);font-size:12px}
.addr{color:var(--go);font-size:11px}
.sv{font-weight:700;font-size:10px;padding:3px 8px;border-radius:6px}
.sv-critical{background:rgba(239,68,68,.15);color:#f87171}.sv-high{background:rgba(245,158,11,.15);color:#fbbf24}
.sv-medium{background:rgba(59,130,246,.15);color:#93c5fd}.sv-low{background:rgba(90,98,120,.15);color:var(--tx3)}
.bar{display:flex;align-items:flex-end;gap:3px;height:120px;padding:14px}
.bar div{flex:1;background:var(--ac);border-radius:2px 2px 0 0;min-height:1px}
.btn{font-family:inherit;font-size:11px;padding:8px 14px;border:none;border-radius:8px;cursor:pointer;font-weight:600}
.btn-p{background:var(--ac);color:#fff}.btn-s{background:var(--sf2);color:var(--tx2);border:1px solid var(--bd)}
.err{color:var(--rd);font-size:11px;padding:10px 18px}
.emp{text-align:center;padding:40px;color:var(--tx3);font-size:12px}
.toast{position:fixed;bottom:24px;right:24px;background:var(--sf);border:1px solid var(--gn);border-radius:10px;padding:14px 20px;color:var(--gn);font-size:12px}
</style></head><body>
<div id="root"></div>
<script src="https://cdnjs.cloudflare.com/ajax/libs/react/18.2.0/umd/react.production.min.js"></script>
<script src="https://cdnjs.cloudflare.com/ajax/libs/react-dom/18.2.0/umd/react-dom.production.min.js"></script>
<script src="https://cdnjs.cloudflare.com/ajax/libs/babel-standalone/7.23.9/babel.min.js"></script>
<script type="text/babel">
const{useState,useEffect,useCallback}=React;
const useFetch=(u,ms=3000)=>{const[d,sD]=useState(null);const ld=useCallback(()=>{fetch(u).then(r=>r.json()).then(sD).catch(()=>{})},[u]);useEffect(()=>{ld();const i=setInterval(ld,ms);return()=>clearInterval(i)},[ld,ms]);return{d,r:ld}};
const post=(u,b)=>fetch(u,{method:'POST',headers:{'Content-Type':'application/json'},body:b?JSON.stringify(b):undefined}).then(async r=>{const j=await r.json().catch(()=>({}));if(!r.ok)throw new Error(j.detail||r.statusText);return j});
const ab=a=>a?(a.slice(0,6)+'...'+a.slice(-4)):'-';
const TS=t=>t?new Date(t*1000).toISOString().replace('T',' ').slice(0,19):'-';
const SV=s=><span className={'sv sv-'+s}>{s}</span>;

function App(){
  const[tab,sTab]=useState('dashboard'),[addr,sAddr]=useState(''),[toast,sToast]=useState('');
  const{d:sel,r:rS}=useFetch('/api/selection',1000);
  const notify=m=>{sToast(m);setTimeout(()=>sToast(''),4000)};
  const watch=()=>post('/api/selection',{address:addr}).then(()=>{rS();notify('Now monitoring '+ab(addr))}).catch(e=>notify(e.message));
  return<div className="app">
    <div className="hdr">
      <h1>Fraud Watch</h1>
      <div className="sel">
        <input placeholder="0x... / bc1... / explorer link" value={addr} onChange={e=>sAddr(e.target.value)} onKeyDown={e=>e.key==='Enter'&&watch()}/>
        <button className="btn btn-p" onClick={watch}>Analyze</button>
      </div>
      <span className="addr">{sel?.selected?(sel.chain+' '+ab(sel.address)):'no address'}</span>
    </div>
    <div className="nav">
      {['dashboard','transactions','alerts','reports'].map(k=><button key={k} className={tab===k?'on':''} onClick={()=>sTab(k)}>{k}</button>)}
    </div>
    {tab==='dashboard'&&<DashboardTab/>}
    {tab==='transactions'&&<TxTab/>}
    {tab==='alerts'&&<AlertsTab notify={notify}/>}
    {tab==='reports'&&<ReportsTab notify={notify}/>}
    {toast&&<div className="toast">{toast}</div>}
  </div>
}

function DashboardTab(){
  const{d}=useFetch('/api/pages/dashboard');
  if(!d)return<div className="emp">loading...</div>;
  const k=d.kpis||{},h=d.hourly||[],mx=Math.max(1,...h.map(b=>b.total));
  return<div>
    {d.error&&<div className="err">{d.error}</div>}
    <div className="sts">
      <div className="st"><div className="v b">{k.total||0}</div><div className="l">Transactions</div></div>
      <div className="st"><div className="v r">{k.high||0}</div><div className="l">High risk</div></div>
      <div className="st"><div className="v o">{k.medium||0}</div><div className="l">Medium risk</div></div>
      <div className="st"><div className="v g">{k.low||0}</div><div className="l">Low risk</div></div>
      <div className="st"><div className="v">{k.detection_rate||0}%</div><div className="l">Detection rate</div></div>
      <div className="st"><div className="v">{k.avg_risk_score||0}</div><div className="l">Avg score</div></div>
    </div>
    <div className="pn"><div className="pn-h"><h2>Activity by hour (UTC)</h2></div>
      <div className="bar">{h.map(b=><div key={b.hour} title={b.hour+':00 '+b.total} style={{height:(b.total/mx*100)+'%'}}/>)}</div></div>
    <div className="pn"><div className="pn-h"><h2>Riskiest transactions</h2></div>
      <table><thead><tr><th>Hash</th><th>From</th><th>To</th><th>Value</th><th>Score</th></tr></thead>
      <tbody>{(d.top_risky||[]).map(t=><tr key={t.hash}><td className="addr">{ab(t.hash)}</td><td>{ab(t.from)}</td><td>{ab(t.to)}</td><td>{t.value}</td><td>{t.risk_score}</td></tr>)}</tbody></table></div>
  </div>
}

function TxTab(){
  const[lvl,sLvl]=useState(''),[q,sQ]=useState('');
  const qs=new URLSearchParams();if(lvl)qs.set('level',lvl);if(q)qs.set('q',q);
  const{d}=useFetch('/api/pages/transactions?'+qs.toString());
  return<div className="pn"><div className="pn-h"><h2>Transactions {d?('('+d.shown+' of '+d.count+')'):''}</h2>
    <div style={{display:'flex',gap:8}}>
      <select value={lvl} onChange={e=>sLvl(e.target.value)}><option value="">all levels</option><option>high</option><option>medium</option><option>low</option></select>
      <input placeholder="search" value={q} onChange={e=>sQ(e.target.value)}/>
      <a className="btn btn-s" href={'/api/export/transactions.csv?'+qs.toString()}>Export CSV</a>
    </div></div>
    {d?.error&&<div className="err">{d.error}</div>}
    <table><thead><tr><th>Hash</th><th>From</th><th>To</th><th>Value</th><th>Time</th><th>Score</th><th>Level</th><th>Mixer</th></tr></thead>
    <tbody>{(d?.items||[]).map(t=><tr key={t.hash}><td className="addr">{ab(t.hash)}</td><td>{ab(t.from)}</td><td>{ab(t.to)}</td><td>{t.value}</td><td>{TS(t.timestamp)}</td><td>{t.risk_score}</td><td>{t.risk_level}</td><td>{t.mixer_involved?'yes':''}</td></tr>)}</tbody></table>
  </div>
}

function AlertsTab({notify}){
  const{d,r}=useFetch('/api/pages/alerts');
  const act=(id,a)=>post('/api/alerts/'+id+'/'+a).then(()=>r()).catch(e=>notify(e.message));
  const s=d?.summary||{by_status:{}};
  return<div>
    <div className="sts">
      <div className="st"><div className="v r">{s.by_status.active||0}</div><div className="l">Active</div></div>
      <div className="st"><div className="v o">{s.by_status.acknowledged||0}</div><div className="l">Acknowledged</div></div>
      <div className="st"><div className="v g">{s.by_status.resolved||0}</div><div className="l">Resolved</div></div>
      <div className="st"><div className="v">{s.pending_sync||0}</div><div className="l">Pending sync</div></div>
    </div>
    <div className="pn"><div className="pn-h"><h2>Alerts</h2><a className="btn btn-s" href="/api/export/alerts.csv">Export CSV</a></div>
    <table><thead><tr><th>Tx</th><th>Severity</th><th>Status</th><th>Reason</th><th></th></tr></thead>
    <tbody>{(d?.alerts||[]).map(a=><tr key={a.id}><td className="addr">{ab(a.id)}</td><td>{SV(a.severity)}</td><td>{a.status}</td><td>{a.reason}</td>
      <td><button className="btn btn-s" onClick={()=>act(a.id,'acknowledge')}>ack</button> <button className="btn btn-s" onClick={()=>act(a.id,'resolve')}>resolve</button></td></tr>)}</tbody></table></div>
  </div>
}

function ReportsTab({notify}){
  const{d}=useFetch('/api/pages/reports');
  const{d:tpls}=useFetch('/api/reports/templates',30000);
  const{d:jobs,r:rJ}=useFetch('/api/reports/jobs',10000);
  const[type,sType]=useState('summary'),[fmt,sFmt]=useState('pdf');
  const gen=()=>post('/api/reports/generate',{report_type:type,format:fmt}).then(o=>{rJ();notify(o.local_path?('Saved '+o.local_path):('Queued job '+o.job_id))}).catch(e=>notify(e.message));
  const st=d?.stats||{};
  return<div>
    <div className="sts">
      <div className="st"><div className="v b">{st.total_transactions||0}</div><div className="l">Total txs</div></div>
      <div className="st"><div className="v r">{st.high_risk_count||0}</div><div className="l">High risk</div></div>
      <div className="st"><div className="v">{st.flagged_volume||0}</div><div className="l">Flagged volume</div></div>
    </div>
    <div className="pn"><div className="pn-h"><h2>Generate</h2>
      <div style={{display:'flex',gap:8}}>
        <select value={type} onChange={e=>sType(e.target.value)}><option>summary</option><option>detailed</option><option>compliance</option></select>
        <select value={fmt} onChange={e=>sFmt(e.target.value)}><option>pdf</option><option>csv</option><option>json</option></select>
        <button className="btn btn-p" onClick={gen}>Generate</button>
      </div></div>
      <table><thead><tr><th>Requested</th><th>Type</th><th>Address</th><th>Job</th><th>File</th></tr></thead>
      <tbody>{(jobs||[]).map(j=><tr key={j.id}><td>{j.requested_at}</td><td>{j.report_type}</td><td>{ab(j.address)}</td><td>{j.job_id||'-'}</td><td>{j.local_path||'-'}</td></tr>)}</tbody></table></div>
    <div className="pn"><div className="pn-h"><h2>Templates</h2></div>
      <table><tbody>{(tpls||[]).map(t=><tr key={t.id}><td>{t.name}</td><td>{t.description}</td><td>{t.size||''}</td></tr>)}</tbody></table></div>
  </div>
}

ReactDOM.createRoot(document.getElementById('root')).render(<App/>);
</script></body></html>`
